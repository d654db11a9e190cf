package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"qrattend/internal/metrics"
	"qrattend/internal/queue"
	"qrattend/internal/staff"
)

// Outcome is what a scan did to the ledger.
type Outcome string

const (
	OutcomeCheckedIn  Outcome = "checked_in"
	OutcomeCheckedOut Outcome = "checked_out"
	OutcomeCompleted  Outcome = "completed"
	OutcomeDebounced  Outcome = "debounced"
	OutcomeUnknown    Outcome = "unknown"
)

// Source tells which surface a scan came through.
type Source string

const (
	SourceCamera Source = "camera"
	SourceForm   Source = "form"
)

// MessageTypeScan tags scan audit messages on the queue.
const MessageTypeScan = "scan"

var (
	// ErrNoStaffID means the scan carried no identifier.
	ErrNoStaffID = errors.New("no staff id provided")
	// ErrStaffNotFound means the identifier is not registered.
	ErrStaffNotFound = errors.New("staff not found")
)

// ScanEvent is the audit entry published for every resolved scan.
type ScanEvent struct {
	UserID    string    `json:"user_id"`
	Outcome   Outcome   `json:"outcome"`
	Source    Source    `json:"source"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Result describes a scan that reached a registered staff member.
type Result struct {
	Outcome Outcome
	Staff   staff.Staff
	At      time.Time
	Weekday string
	Record  *Record
}

// StaffLookup finds registered staff.
type StaffLookup interface {
	Get(ctx context.Context, userID string) (*staff.Staff, error)
}

// Ledger stores per-day attendance records.
type Ledger interface {
	Today(ctx context.Context, userID string, date time.Time) (*Record, error)
	InsertCheckIn(ctx context.Context, userID string, at time.Time, weekday string, date time.Time) (bool, error)
	SetCheckOut(ctx context.Context, id int64, at time.Time) (bool, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Debouncer admits the first scan of a key inside its window.
type Debouncer interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Options tune a Service. Zero values are usable.
type Options struct {
	Location  *time.Location
	Debouncer Debouncer
	Publisher queue.Publisher
	Now       func() time.Time
	ListLimit int
}

// Service resolves scans into check-ins and check-outs.
type Service struct {
	people    StaffLookup
	ledger    Ledger
	loc       *time.Location
	debouncer Debouncer
	publisher queue.Publisher
	now       func() time.Time
	listLimit int
}

// NewService creates a service backed by the staff registry and the ledger.
func NewService(people StaffLookup, ledger Ledger, opts Options) *Service {
	s := &Service{
		people:    people,
		ledger:    ledger,
		loc:       opts.Location,
		debouncer: opts.Debouncer,
		publisher: opts.Publisher,
		now:       opts.Now,
		listLimit: opts.ListLimit,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.listLimit <= 0 {
		s.listLimit = 500
	}
	return s
}

// Scan applies one scan of rawID. The identifier is trimmed and lowercased.
// Unknown identifiers return ErrStaffNotFound and never touch the ledger.
func (s *Service) Scan(ctx context.Context, rawID string, source Source) (Result, error) {
	id := staff.NormalizeID(rawID)
	if id == "" {
		return Result{}, ErrNoStaffID
	}
	start := time.Now()
	now := s.now().In(s.loc)

	res, err := s.scan(ctx, id, now)
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, ErrStaffNotFound):
		res.Outcome = OutcomeUnknown
	case err != nil:
		metrics.Scans.WithLabelValues("error", string(source)).Inc()
		return Result{}, err
	}
	metrics.Scans.WithLabelValues(string(res.Outcome), string(source)).Inc()
	s.publish(ctx, ScanEvent{UserID: id, Outcome: res.Outcome, Source: source, ScannedAt: now})
	return res, err
}

func (s *Service) scan(ctx context.Context, id string, now time.Time) (Result, error) {
	st, err := s.people.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("lookup staff: %w", err)
	}
	if st == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrStaffNotFound, id)
	}
	res := Result{Staff: *st, At: now, Weekday: now.Weekday().String()}

	if s.debouncer != nil {
		ok, err := s.debouncer.Allow(ctx, id)
		if err != nil {
			log.Printf("debounce check failed for %s, allowing scan: %v", id, err)
		} else if !ok {
			res.Outcome = OutcomeDebounced
			return res, nil
		}
	}

	date := dateOnly(now)
	rec, err := s.ledger.Today(ctx, id, date)
	if err != nil {
		return Result{}, fmt.Errorf("load today's record: %w", err)
	}

	if rec == nil {
		inserted, err := s.ledger.InsertCheckIn(ctx, id, now, res.Weekday, date)
		if err != nil {
			return Result{}, fmt.Errorf("record check-in: %w", err)
		}
		res.Outcome = OutcomeCheckedIn
		if inserted {
			at := now
			res.Record = &Record{UserID: id, CheckIn: &at, Weekday: res.Weekday, Date: date}
			return res, nil
		}
		// a concurrent scan created the row first
		res.Record, err = s.ledger.Today(ctx, id, date)
		if err != nil {
			return Result{}, fmt.Errorf("reload today's record: %w", err)
		}
		return res, nil
	}

	if rec.CheckIn != nil && rec.CheckOut == nil {
		updated, err := s.ledger.SetCheckOut(ctx, rec.ID, now)
		if err != nil {
			return Result{}, fmt.Errorf("record check-out: %w", err)
		}
		if updated {
			at := now
			rec.CheckOut = &at
			res.Outcome = OutcomeCheckedOut
			res.Record = rec
			return res, nil
		}
	}

	res.Outcome = OutcomeCompleted
	res.Record = rec
	return res, nil
}

// List returns the attendance table, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	return s.ledger.List(ctx, s.listLimit)
}

// Location is the zone used to decide what "today" is.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) publish(ctx context.Context, evt ScanEvent) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("scan event encode failed: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, queue.Message{Type: MessageTypeScan, Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}
