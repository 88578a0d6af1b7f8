package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/armlink/internal/armband"
)

// End reasons.
const (
	ReasonDisconnected = "disconnected"
	ReasonShutdown     = "shutdown"
	ReasonStale        = "stale"
)

const (
	// timeFormat is fixed width so stored timestamps sort as text.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

	defaultListLimit = 50
	maxListLimit     = 200
)

// Session is one armband connection.
type Session struct {
	ID             string             `json:"id"`
	HubID          string             `json:"hub_id"`
	Handle         armband.Handle     `json:"handle"`
	Arm            armband.Arm        `json:"arm"`
	XDirection     armband.XDirection `json:"x_direction"`
	StartedAt      time.Time          `json:"started_at"`
	EndedAt        *time.Time         `json:"ended_at,omitempty"`
	EndReason      string             `json:"end_reason,omitempty"`
	CommandsSent   int                `json:"commands_sent"`
	CommandsFailed int                `json:"commands_failed"`
}

// Open reports whether the session has not ended.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// Duration returns the session length, measured to now while still open.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// Filter controls which sessions List returns.
type Filter struct {
	HubID    string          // optional
	Handle   *armband.Handle // optional
	OpenOnly bool
	Limit    int // default 50, max 200
	Offset   int
}

// ListResult is one page of sessions.
type ListResult struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// Repository stores armband sessions.
type Repository interface {
	Start(ctx context.Context, s *Session) error
	End(ctx context.Context, hubID string, h armband.Handle, at time.Time, reason string) (int64, error)
	CountCommand(ctx context.Context, hubID string, h armband.Handle, ok bool) error
	CloseStale(ctx context.Context, hubID string, at time.Time) (int64, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores sessions in the armband_sessions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a session repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Start inserts an open session. ID and StartedAt are generated if empty.
func (r *SQLiteRepository) Start(ctx context.Context, s *Session) error {
	if s.HubID == "" {
		return fmt.Errorf("%w: hub id is required", ErrInvalidSession)
	}
	if s.ID == "" {
		s.ID = "ses-" + uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Arm == "" {
		s.Arm = armband.ArmUnknown
	}
	if s.XDirection == "" {
		s.XDirection = armband.XDirectionUnknown
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO armband_sessions (id, hub_id, handle, arm, x_direction, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.HubID, int(s.Handle), string(s.Arm), string(s.XDirection),
		s.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// End closes the open sessions of handle on hubID and returns how many
// rows were closed.
func (r *SQLiteRepository) End(ctx context.Context, hubID string, h armband.Handle, at time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE armband_sessions SET ended_at = ?, end_reason = ?
		 WHERE hub_id = ? AND handle = ? AND ended_at IS NULL`,
		at.UTC().Format(timeFormat), reason, hubID, int(h),
	)
	if err != nil {
		return 0, fmt.Errorf("ending session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ending session: %w", err)
	}
	return n, nil
}

// CountCommand adds one command outcome to the open session of handle.
// It returns ErrNotFound when the handle has no open session.
func (r *SQLiteRepository) CountCommand(ctx context.Context, hubID string, h armband.Handle, ok bool) error {
	column := "commands_sent"
	if !ok {
		column = "commands_failed"
	}
	query := fmt.Sprintf( //nolint:gosec // column is one of two constants
		`UPDATE armband_sessions SET %s = %s + 1
		 WHERE hub_id = ? AND handle = ? AND ended_at IS NULL`,
		column, column,
	)

	res, err := r.db.ExecContext(ctx, query, hubID, int(h))
	if err != nil {
		return fmt.Errorf("counting command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting command: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseStale ends every session of hubID still open, marking it stale.
// It is run at startup, before any device can connect.
func (r *SQLiteRepository) CloseStale(ctx context.Context, hubID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE armband_sessions SET ended_at = ?, end_reason = ?
		 WHERE hub_id = ? AND ended_at IS NULL`,
		at.UTC().Format(timeFormat), ReasonStale, hubID,
	)
	if err != nil {
		return 0, fmt.Errorf("closing stale sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("closing stale sessions: %w", err)
	}
	return n, nil
}

// List returns sessions matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.HubID != "" {
		conditions = append(conditions, "hub_id = ?")
		args = append(args, filter.HubID)
	}
	if filter.Handle != nil {
		conditions = append(conditions, "handle = ?")
		args = append(args, int(*filter.Handle))
	}
	if filter.OpenOnly {
		conditions = append(conditions, "ended_at IS NULL")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM armband_sessions " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	query := `SELECT id, hub_id, handle, arm, x_direction, started_at, ended_at, end_reason,
		commands_sent, commands_failed
		FROM armband_sessions ` + where + ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return &ListResult{
		Sessions: sessions,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

func scanSession(rows *sql.Rows) (Session, error) {
	var s Session
	var handle int
	var arm, xdir, startedAt string
	var endedAt, endReason sql.NullString

	if err := rows.Scan(&s.ID, &s.HubID, &handle, &arm, &xdir, &startedAt,
		&endedAt, &endReason, &s.CommandsSent, &s.CommandsFailed); err != nil {
		return Session{}, fmt.Errorf("scanning session: %w", err)
	}
	s.Handle = armband.Handle(handle)
	s.Arm = armband.Arm(arm)
	s.XDirection = armband.XDirection(xdir)

	t, err := time.Parse(timeFormat, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parsing session start %q: %w", startedAt, err)
	}
	s.StartedAt = t

	if endedAt.Valid {
		e, err := time.Parse(timeFormat, endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parsing session end %q: %w", endedAt.String, err)
		}
		s.EndedAt = &e
	}
	if endReason.Valid {
		s.EndReason = endReason.String
	}
	return s, nil
}
