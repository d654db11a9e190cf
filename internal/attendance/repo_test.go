package attendance

import (
	"context"
	"testing"
	"time"

	"qrattend/internal/staff"
	"qrattend/internal/store"
)

func openLedger(t *testing.T) (*Repository, *staff.Repository) {
	t.Helper()
	db, err := store.NewDB(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	people := staff.NewRepository(db.Client)
	for _, id := range []string{"abcd1234", "beef0001"} {
		if err := people.Create(context.Background(), &staff.Staff{UserID: id, Name: "Staff " + id, Department: "Ops"}); err != nil {
			t.Fatalf("seed staff: %v", err)
		}
	}
	return NewRepository(db.Client), people
}

func TestRepository_DayLifecycle(t *testing.T) {
	repo, _ := openLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	out := in.Add(9 * time.Hour)
	date := dateOnly(in)

	rec, err := repo.Today(ctx, "abcd1234", date)
	if err != nil || rec != nil {
		t.Fatalf("expected no record yet, got %+v, %v", rec, err)
	}

	ok, err := repo.InsertCheckIn(ctx, "abcd1234", in, "Wednesday", date)
	if err != nil || !ok {
		t.Fatalf("insert check-in: ok=%v err=%v", ok, err)
	}
	ok, err = repo.InsertCheckIn(ctx, "abcd1234", in.Add(time.Second), "Wednesday", date)
	if err != nil || ok {
		t.Fatalf("second insert for the same day must be a no-op: ok=%v err=%v", ok, err)
	}

	rec, err = repo.Today(ctx, "abcd1234", date)
	if err != nil || rec == nil {
		t.Fatalf("today: %+v, %v", rec, err)
	}
	if rec.CheckIn == nil || !rec.CheckIn.Equal(in) || rec.CheckOut != nil || rec.Weekday != "Wednesday" {
		t.Errorf("unexpected record after check-in: %+v", rec)
	}

	ok, err = repo.SetCheckOut(ctx, rec.ID, out)
	if err != nil || !ok {
		t.Fatalf("check-out: ok=%v err=%v", ok, err)
	}
	ok, err = repo.SetCheckOut(ctx, rec.ID, out.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("second check-out must be a no-op: ok=%v err=%v", ok, err)
	}

	rec, err = repo.Today(ctx, "abcd1234", date)
	if err != nil {
		t.Fatal(err)
	}
	if rec.CheckOut == nil || !rec.CheckOut.Equal(out) {
		t.Errorf("expected check-out %s, got %+v", out, rec.CheckOut)
	}
}

func TestRepository_ListOrdering(t *testing.T) {
	repo, _ := openLedger(t)
	ctx := context.Background()
	scans := []struct {
		id string
		at time.Time
	}{
		{"abcd1234", time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)},
		{"beef0001", time.Date(2026, 10, 14, 7, 45, 0, 0, time.UTC)},
		{"abcd1234", time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)},
		{"beef0001", time.Date(2026, 10, 13, 10, 0, 0, 0, time.UTC)},
		{"abcd1234", time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)},
	}
	for _, s := range scans {
		if _, err := repo.InsertCheckIn(ctx, s.id, s.at, s.at.Weekday().String(), dateOnly(s.at)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	entries, err := repo.List(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != len(scans) {
		t.Fatalf("expected %d entries, got %d", len(scans), len(entries))
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Date.After(prev.Date) || (cur.Date.Equal(prev.Date) && cur.CheckIn.After(*prev.CheckIn)) {
			t.Errorf("entries %d and %d out of order: %s %s then %s %s", i-1, i, prev.Date, prev.CheckIn, cur.Date, cur.CheckIn)
		}
	}
	if entries[0].UserID != "abcd1234" || entries[0].Name != "Staff abcd1234" || entries[0].Department != "Ops" {
		t.Errorf("expected newest entry joined with staff, got %+v", entries[0])
	}

	limited, err := repo.List(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Errorf("limit not applied: %d, %v", len(limited), err)
	}
}

func TestRepository_ScanEvents(t *testing.T) {
	repo, _ := openLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	events := []ScanEvent{
		{UserID: "abcd1234", Outcome: OutcomeCheckedIn, Source: SourceCamera, ScannedAt: base},
		{UserID: "deadbeef", Outcome: OutcomeUnknown, Source: SourceForm, ScannedAt: base.Add(time.Minute)},
		{UserID: "abcd1234", Outcome: OutcomeCheckedOut, Source: SourceCamera, ScannedAt: base.Add(time.Hour)},
	}
	for _, evt := range events {
		if err := repo.InsertScanEvent(ctx, evt); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	all, err := repo.ListScanEvents(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(all) != 3 || all[0].Outcome != OutcomeCheckedOut {
		t.Errorf("expected newest first, got %+v", all)
	}

	mine, err := repo.ListScanEvents(ctx, "abcd1234", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 events for abcd1234, got %d", len(mine))
	}

	page, err := repo.ListScanEvents(ctx, "", 1, 1)
	if err != nil || len(page) != 1 || page[0].UserID != "deadbeef" {
		t.Errorf("unexpected page: %+v, %v", page, err)
	}
}
