package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Record is one ledger row: a staff member's attendance on one date.
type Record struct {
	ID       int64
	UserID   string
	CheckIn  *time.Time
	CheckOut *time.Time
	Weekday  string
	Date     time.Time
}

// Entry is a ledger row joined with the staff profile for display.
type Entry struct {
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	Department string     `json:"department"`
	ImagePath  string     `json:"image_path"`
	CheckIn    *time.Time `json:"check_in_time"`
	CheckOut   *time.Time `json:"check_out_time"`
	Date       time.Time  `json:"date"`
	Weekday    string     `json:"day_of_week"`
}

// Repository persists the ledger in the qr_attendance table and the audit
// trail in scan_events.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Today returns the record for userID on date, or nil when there is none.
func (r *Repository) Today(ctx context.Context, userID string, date time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, check_in_time, check_out_time, COALESCE(day_of_week, ''), date
		FROM qr_attendance
		WHERE user_id = $1 AND date = $2
	`, userID, dateOnly(date))
	var (
		rec          Record
		checkIn, out sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &checkIn, &out, &rec.Weekday, &rec.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.CheckIn = nullTime(checkIn)
	rec.CheckOut = nullTime(out)
	return &rec, nil
}

// InsertCheckIn creates the day's record with check-in set. It returns
// false without error when a record for (userID, date) already exists.
func (r *Repository) InsertCheckIn(ctx context.Context, userID string, at time.Time, weekday string, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO qr_attendance (user_id, check_in_time, day_of_week, date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO NOTHING
	`, userID, at.UTC(), weekday, dateOnly(date))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetCheckOut fills check-out on a record that has none yet. It returns
// false when the record was already checked out.
func (r *Repository) SetCheckOut(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE qr_attendance
		SET check_out_time = $1
		WHERE id = $2 AND check_out_time IS NULL
	`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// List returns ledger rows joined with staff, newest date and check-in first.
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.user_id, COALESCE(s.name, ''), COALESCE(s.department, ''), COALESCE(s.image_path, ''),
		       a.check_in_time, a.check_out_time, a.date, COALESCE(a.day_of_week, '')
		FROM qr_attendance a
		LEFT JOIN staff s ON a.user_id = s.user_id
		ORDER BY a.date DESC, a.check_in_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e            Entry
			checkIn, out sql.NullTime
		)
		if err := rows.Scan(&e.UserID, &e.Name, &e.Department, &e.ImagePath, &checkIn, &out, &e.Date, &e.Weekday); err != nil {
			return nil, err
		}
		e.CheckIn = nullTime(checkIn)
		e.CheckOut = nullTime(out)
		res = append(res, e)
	}
	return res, rows.Err()
}

// InsertScanEvent appends one audit entry.
func (r *Repository) InsertScanEvent(ctx context.Context, evt ScanEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_events (user_id, outcome, source, scanned_at)
		VALUES ($1, $2, $3, $4)
	`, evt.UserID, string(evt.Outcome), string(evt.Source), evt.ScannedAt.UTC())
	return err
}

// ListScanEvents returns audit entries, newest first, optionally for one user.
func (r *Repository) ListScanEvents(ctx context.Context, userID string, limit, offset int) ([]ScanEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT user_id, outcome, source, scanned_at FROM scan_events`
	args := []any{}
	if userID != "" {
		args = append(args, userID)
		query += " WHERE user_id = $1"
	}
	query += " ORDER BY scanned_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScanEvent
	for rows.Next() {
		var (
			evt             ScanEvent
			outcome, source string
		)
		if err := rows.Scan(&evt.UserID, &outcome, &source, &evt.ScannedAt); err != nil {
			return nil, err
		}
		evt.Outcome = Outcome(outcome)
		evt.Source = Source(source)
		res = append(res, evt)
	}
	return res, rows.Err()
}

// dateOnly truncates t to its calendar date at UTC midnight so that the
// same day compares equal regardless of the zone it was computed in.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
