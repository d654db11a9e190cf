package staff

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"qrattend/internal/artifact"
	"qrattend/internal/media"
	"qrattend/internal/store"
)

// IDLength is the number of characters kept from a random UUID.
const IDLength = 8

const maxIDAttempts = 5

var (
	// ErrMissingField means name, department or photo was not supplied.
	ErrMissingField = errors.New("name, department and image are required")
	// ErrInvalidPhoto means the upload could not be decoded as an image.
	ErrInvalidPhoto = errors.New("image is not a supported picture")

	errIDTaken = errors.New("staff id taken")
)

// Registration is the input for Register.
type Registration struct {
	Name       string
	Department string
	Photo      []byte
}

// Registered is a newly created staff member along with links to its artifacts.
type Registered struct {
	Staff    Staff
	QRURL    string
	PhotoURL string
}

// Store is the persistence the registry needs.
type Store interface {
	Create(ctx context.Context, st *Staff) error
	Get(ctx context.Context, userID string) (*Staff, error)
}

// Service registers staff.
type Service struct {
	repo      Store
	artifacts artifact.Store
	newID     func() string
}

// NewService creates a service backed by a repository and an artifact store.
func NewService(repo Store, artifacts artifact.Store) *Service {
	return &Service{repo: repo, artifacts: artifacts, newID: NewID}
}

// NewID returns a short lowercase identifier cut from a random UUID.
func NewID() string {
	return uuid.NewString()[:IDLength]
}

// NormalizeID trims and lowercases a scanned or typed identifier.
func NormalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Register validates the input, stores the QR code and photo, and inserts
// the staff row. Nothing is persisted when validation fails.
func (s *Service) Register(ctx context.Context, in Registration) (*Registered, error) {
	name := strings.TrimSpace(in.Name)
	department := strings.TrimSpace(in.Department)
	if name == "" || department == "" || len(in.Photo) == 0 {
		return nil, ErrMissingField
	}

	photo, err := media.NormalizePhoto(in.Photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id := s.newID()
		reg, err := s.create(ctx, id, name, department, photo)
		if err == nil {
			return reg, nil
		}
		if !errors.Is(err, errIDTaken) {
			return nil, err
		}
		log.Printf("staff id %s already taken, retrying (%d/%d)", id, attempt, maxIDAttempts)
	}
	return nil, fmt.Errorf("could not allocate a unique staff id after %d attempts", maxIDAttempts)
}

func (s *Service) create(ctx context.Context, id, name, department string, photo []byte) (*Registered, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup staff: %w", err)
	}
	if existing != nil {
		return nil, errIDTaken
	}

	qr, err := media.QRCode(id)
	if err != nil {
		return nil, err
	}
	qrObj, err := s.artifacts.Put(ctx, artifact.KindQR, id+".png", qr)
	if err != nil {
		if errors.Is(err, artifact.ErrExists) {
			return nil, errIDTaken
		}
		return nil, fmt.Errorf("save qr code: %w", err)
	}
	photoObj, err := s.artifacts.Put(ctx, artifact.KindPhoto, id+".jpg", photo)
	if err != nil {
		s.discard(ctx, qrObj)
		if errors.Is(err, artifact.ErrExists) {
			return nil, errIDTaken
		}
		return nil, fmt.Errorf("save image: %w", err)
	}

	st := Staff{
		UserID:     id,
		Name:       name,
		Department: department,
		QRCodePath: qrObj.Ref,
		ImagePath:  photoObj.Ref,
	}
	if err := s.repo.Create(ctx, &st); err != nil {
		s.discard(ctx, qrObj, photoObj)
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errIDTaken
		}
		return nil, fmt.Errorf("save staff: %w", err)
	}
	return &Registered{Staff: st, QRURL: qrObj.URL, PhotoURL: photoObj.URL}, nil
}

func (s *Service) discard(ctx context.Context, objs ...artifact.Object) {
	for _, obj := range objs {
		if err := s.artifacts.Remove(ctx, obj); err != nil {
			log.Printf("artifact cleanup failed for %s: %v", obj.Ref, err)
		}
	}
}
