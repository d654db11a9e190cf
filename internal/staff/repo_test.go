package staff

import (
	"context"
	"errors"
	"testing"

	"qrattend/internal/store"
)

func TestRepository_CreateAndGet(t *testing.T) {
	db, err := store.NewDB(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	repo := NewRepository(db.Client)
	ctx := context.Background()

	st := &Staff{UserID: "abcd1234", Name: "Ada", Department: "Ops", QRCodePath: "static/qr_codes/abcd1234.png"}
	if err := repo.Create(ctx, st); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "Ada" || got.QRCodePath != st.QRCodePath || got.ImagePath != "" {
		t.Errorf("unexpected row: %+v", got)
	}

	missing, err := repo.Get(ctx, "ffffffff")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown id, got %+v, %v", missing, err)
	}

	err = repo.Create(ctx, &Staff{UserID: "abcd1234", Name: "Bob", Department: "Ops"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}
