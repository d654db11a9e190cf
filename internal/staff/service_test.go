package staff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"qrattend/internal/artifact"
	"qrattend/internal/store"
)

type memStore struct {
	rows      map[string]Staff
	failWith  error
	raceOnce  string
	creations int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]Staff{}}
}

func (m *memStore) Create(_ context.Context, st *Staff) error {
	m.creations++
	if m.failWith != nil {
		return m.failWith
	}
	if st.UserID == m.raceOnce {
		m.raceOnce = ""
		return fmt.Errorf("%w: concurrent insert", store.ErrDuplicate)
	}
	if _, ok := m.rows[st.UserID]; ok {
		return fmt.Errorf("%w: user_id", store.ErrDuplicate)
	}
	m.rows[st.UserID] = *st
	return nil
}

func (m *memStore) Get(_ context.Context, userID string) (*Staff, error) {
	st, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 40))); err != nil {
		t.Fatalf("encode photo: %v", err)
	}
	return buf.Bytes()
}

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	_ = filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestRegister_MissingFieldCreatesNothing(t *testing.T) {
	photo := testPhoto(t)
	cases := map[string]Registration{
		"no name":       {Department: "Ops", Photo: photo},
		"blank name":    {Name: "   ", Department: "Ops", Photo: photo},
		"no department": {Name: "Ada", Photo: photo},
		"no photo":      {Name: "Ada", Department: "Ops"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			repo := newMemStore()
			svc := NewService(repo, artifact.NewLocal(root, "static"))

			_, err := svc.Register(context.Background(), in)

			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("expected ErrMissingField, got %v", err)
			}
			if repo.creations != 0 || len(repo.rows) != 0 {
				t.Errorf("no staff row may be created, got %d", len(repo.rows))
			}
			if n := countFiles(t, root); n != 0 {
				t.Errorf("no artifacts may be written, found %d", n)
			}
		})
	}
}

func TestRegister_InvalidPhoto(t *testing.T) {
	repo := newMemStore()
	svc := NewService(repo, artifact.NewLocal(t.TempDir(), "static"))

	_, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: []byte("nope")})

	if !errors.Is(err, ErrInvalidPhoto) {
		t.Fatalf("expected ErrInvalidPhoto, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Error("invalid photo must not create a staff row")
	}
}

func TestRegister_StoresArtifactsAndRow(t *testing.T) {
	root := t.TempDir()
	repo := newMemStore()
	svc := NewService(repo, artifact.NewLocal(root, "static"))

	reg, err := svc.Register(context.Background(), Registration{Name: " Ada Lovelace ", Department: "Engineering", Photo: testPhoto(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id := reg.Staff.UserID
	if len(id) != IDLength || NormalizeID(id) != id {
		t.Errorf("identifier %q should be %d lowercase chars", id, IDLength)
	}
	row, ok := repo.rows[id]
	if !ok {
		t.Fatal("staff row not stored")
	}
	if row.Name != "Ada Lovelace" || row.Department != "Engineering" {
		t.Errorf("fields not trimmed/stored: %+v", row)
	}
	if row.QRCodePath != "static/qr_codes/"+id+".png" || row.ImagePath != "static/staff_images/"+id+".jpg" {
		t.Errorf("unexpected artifact refs: %+v", row)
	}
	if reg.QRURL != "/"+row.QRCodePath || reg.PhotoURL != "/"+row.ImagePath {
		t.Errorf("unexpected urls: %s %s", reg.QRURL, reg.PhotoURL)
	}
	for _, p := range []string{filepath.Join(root, "qr_codes", id+".png"), filepath.Join(root, "staff_images", id+".jpg")} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("artifact %s missing: %v", p, err)
		}
	}
}

func TestRegister_DistinctIdentifiers(t *testing.T) {
	repo := newMemStore()
	svc := NewService(repo, artifact.NewLocal(t.TempDir(), "static"))
	seen := map[string]bool{}

	for i := 0; i < 20; i++ {
		reg, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: testPhoto(t)})
		if err != nil {
			t.Fatalf("registration %d: %v", i, err)
		}
		if seen[reg.Staff.UserID] {
			t.Fatalf("identifier %s issued twice", reg.Staff.UserID)
		}
		seen[reg.Staff.UserID] = true
	}
}

func TestRegister_RetriesTakenIdentifier(t *testing.T) {
	root := t.TempDir()
	repo := newMemStore()
	repo.rows["aaaaaaaa"] = Staff{UserID: "aaaaaaaa", Name: "Existing"}
	svc := NewService(repo, artifact.NewLocal(root, "static"))
	svc.newID = sequence("aaaaaaaa", "bbbbbbbb")

	reg, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: testPhoto(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reg.Staff.UserID != "bbbbbbbb" {
		t.Errorf("expected retry to pick the next id, got %s", reg.Staff.UserID)
	}
	if repo.rows["aaaaaaaa"].Name != "Existing" {
		t.Error("existing staff must be untouched")
	}
}

func TestRegister_InsertRaceCleansUpAndRetries(t *testing.T) {
	root := t.TempDir()
	repo := newMemStore()
	repo.raceOnce = "cccccccc"
	svc := NewService(repo, artifact.NewLocal(root, "static"))
	svc.newID = sequence("cccccccc", "dddddddd")

	reg, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: testPhoto(t)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reg.Staff.UserID != "dddddddd" {
		t.Errorf("expected dddddddd, got %s", reg.Staff.UserID)
	}
	if _, err := os.Stat(filepath.Join(root, "qr_codes", "cccccccc.png")); !os.IsNotExist(err) {
		t.Error("artifacts from the failed attempt should be removed")
	}
}

func TestRegister_StoreFailureRemovesArtifacts(t *testing.T) {
	root := t.TempDir()
	repo := newMemStore()
	repo.failWith = errors.New("connection refused")
	svc := NewService(repo, artifact.NewLocal(root, "static"))

	_, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: testPhoto(t)})

	if err == nil {
		t.Fatal("expected error")
	}
	if n := countFiles(t, root); n != 0 {
		t.Errorf("expected artifacts to be cleaned up, found %d files", n)
	}
}

func TestRegister_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemStore()
	repo.rows["eeeeeeee"] = Staff{UserID: "eeeeeeee"}
	svc := NewService(repo, artifact.NewLocal(t.TempDir(), "static"))
	svc.newID = sequence("eeeeeeee")

	if _, err := svc.Register(context.Background(), Registration{Name: "Ada", Department: "Ops", Photo: testPhoto(t)}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestNormalizeID(t *testing.T) {
	if got := NormalizeID("  AbCd1234\n"); got != "abcd1234" {
		t.Errorf("got %q", got)
	}
}
