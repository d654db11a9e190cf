package staff

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qrattend/internal/store"
)

// Staff is a registered staff member. Rows are never updated.
type Staff struct {
	ID         int64     `json:"-"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	QRCodePath string    `json:"qr_code_path"`
	ImagePath  string    `json:"image_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists staff in the staff table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts st. A clash on user_id is reported as store.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, st *Staff) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff (name, department, user_id, qr_code_path, image_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, st.Name, st.Department, st.UserID, st.QRCodePath, st.ImagePath, st.CreatedAt)
	return store.Translate(err)
}

// Get returns the staff member with userID, or nil when there is none.
func (r *Repository) Get(ctx context.Context, userID string) (*Staff, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, department, COALESCE(qr_code_path, ''), COALESCE(image_path, ''), created_at
		FROM staff WHERE user_id = $1
	`, userID)
	var st Staff
	if err := row.Scan(&st.ID, &st.UserID, &st.Name, &st.Department, &st.QRCodePath, &st.ImagePath, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

