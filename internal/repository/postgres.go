package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const requestColumns = `id, title, description, proposer_id, starts_at, duration_minutes,
	mode, venue, meeting_link, capacity, prerequisites, tags, materials_url,
	decision, admin_message, lecture_id, created_at, updated_at`

const lectureColumns = `id, COALESCE(request_id, ''), title, description, instructor_id, starts_at,
	duration_minutes, mode, venue, meeting_link, capacity, prerequisites, tags, materials_url,
	status, recording_url, admin_message, created_at, updated_at`

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists talk requests and lectures in PostgreSQL.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a PostgresStore. lockTimeout bounds how long
// a writer waits for a lecture or request row lock.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// ─── Talk requests ───────────────────────────────────────────────────────────

// CreateRequest inserts a new talk request.
func (s *PostgresStore) CreateRequest(ctx context.Context, req model.TalkRequest) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO talk_requests (`+requestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		req.ID, req.Title, req.Description, req.ProposerID, req.StartsAt, req.DurationMinutes,
		string(req.Location.Mode()), req.Location.Venue(), req.Location.MeetingLink(),
		req.Capacity, req.Prerequisites, nonNilTags(req.Tags), req.MaterialsURL,
		string(req.Decision), req.AdminMessage, req.LectureID, req.CreatedAt, req.UpdatedAt,
	)
	return storageErr("insert talk request", err)
}

// GetRequest returns a single talk request or model.ErrNotFound.
func (s *PostgresStore) GetRequest(ctx context.Context, id string) (model.TalkRequest, error) {
	req, err := scanPgRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM talk_requests WHERE id = $1`, id))
	if err != nil {
		return model.TalkRequest{}, storageErr("get talk request", err)
	}
	return req, nil
}

// ListRequests returns talk requests newest first.
func (s *PostgresStore) ListRequests(ctx context.Context, f model.RequestFilter) ([]model.TalkRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.ProposerID != "" {
		args = append(args, f.ProposerID)
		where = append(where, fmt.Sprintf("proposer_id = $%d", len(args)))
	}
	if f.Decision != "" {
		args = append(args, string(f.Decision))
		where = append(where, fmt.Sprintf("decision = $%d", len(args)))
	}
	query := `SELECT ` + requestColumns + ` FROM talk_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list talk requests", err)
	}
	defer rows.Close()

	var reqs []model.TalkRequest
	for rows.Next() {
		req, err := scanPgRequest(rows)
		if err != nil {
			return nil, storageErr("scan talk request", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, storageErr("list talk requests", rows.Err())
}

// DecideRequest locks the request row, lets decide mutate it and
// optionally produce a lecture, then writes both in one transaction.
// Nothing is written when decide fails.
func (s *PostgresStore) DecideRequest(
	ctx context.Context,
	id string,
	decide func(*model.TalkRequest) (*model.Lecture, error),
) (model.TalkRequest, *model.Lecture, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return model.TalkRequest{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := scanPgRequest(tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM talk_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.TalkRequest{}, nil, storageErr("lock talk request", err)
	}

	lecture, err := decide(&req)
	if err != nil {
		return model.TalkRequest{}, nil, err
	}
	if lecture != nil {
		if err := insertPgLecture(ctx, tx, *lecture); err != nil {
			return model.TalkRequest{}, nil, err
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE talk_requests
		 SET decision = $2, admin_message = $3, lecture_id = $4, updated_at = $5
		 WHERE id = $1`,
		req.ID, string(req.Decision), req.AdminMessage, req.LectureID, req.UpdatedAt,
	)
	if err != nil {
		return model.TalkRequest{}, nil, storageErr("update talk request", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.TalkRequest{}, nil, storageErr("commit decision", err)
	}
	return req, lecture, nil
}

// ─── Lectures ────────────────────────────────────────────────────────────────

// CreateLecture inserts a lecture with no attendees.
func (s *PostgresStore) CreateLecture(ctx context.Context, l model.Lecture) error {
	return insertPgLecture(ctx, s.db, l)
}

// GetLecture returns a lecture with its attendees or model.ErrNotFound.
func (s *PostgresStore) GetLecture(ctx context.Context, id string) (model.Lecture, error) {
	l, err := getPgLecture(ctx, s.db, id, false)
	if err != nil {
		return model.Lecture{}, storageErr("get lecture", err)
	}
	return l, nil
}

// ListLectures returns lectures selected by f with their attendees.
func (s *PostgresStore) ListLectures(ctx context.Context, f model.LectureFilter) ([]model.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures`
	var args []any
	switch f.When {
	case model.WhenUpcoming:
		query += ` WHERE starts_at > $1 ORDER BY starts_at ASC, id`
		args = append(args, f.Now)
	case model.WhenPast:
		query += ` WHERE starts_at <= $1 ORDER BY starts_at DESC, id`
		args = append(args, f.Now)
	default:
		query += ` ORDER BY starts_at ASC, id`
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list lectures", err)
	}
	var (
		lectures []model.Lecture
		ids      []string
	)
	for rows.Next() {
		l, err := scanPgLecture(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("scan lecture", err)
		}
		lectures = append(lectures, l)
		ids = append(ids, l.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("list lectures", err)
	}
	if len(ids) == 0 {
		return lectures, nil
	}

	rows, err = s.db.Query(ctx,
		`SELECT lecture_id, member_id FROM lecture_attendees WHERE lecture_id = ANY($1)`, ids)
	if err != nil {
		return nil, storageErr("list attendees", err)
	}
	defer rows.Close()
	byLecture := make(map[string][]string, len(ids))
	for rows.Next() {
		var lectureID, memberID string
		if err := rows.Scan(&lectureID, &memberID); err != nil {
			return nil, storageErr("scan attendee", err)
		}
		byLecture[lectureID] = append(byLecture[lectureID], memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list attendees", err)
	}
	groupAttendees(lectures, byLecture)
	return lectures, nil
}

// AddAttendee performs a concurrency-safe registration inside a
// transaction.
//
// A naive read-then-write (count attendees, compare with capacity, insert)
// lets two transactions read the same count before either writes, so both
// see a free seat and the lecture is overbooked.
//
// SELECT … FOR UPDATE takes a row-level exclusive lock on the lecture.
// Every other registration for the same lecture blocks on that lock until
// we COMMIT or ROLLBACK, so the count, the duplicate check and the insert
// run as one serialised step. lock_timeout bounds the wait.
func (s *PostgresStore) AddAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error) {
	return s.withLockedLecture(ctx, lectureID, func(tx pgx.Tx, l *model.Lecture) error {
		if err := model.CheckAdmission(*l, memberID, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO lecture_attendees (lecture_id, member_id, registered_at) VALUES ($1, $2, $3)`,
			lectureID, memberID, now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return model.Conflict(model.ErrAlreadyRegistered, "")
			}
			return storageErr("insert attendee", err)
		}
		l.Attendees = append(l.Attendees, memberID)
		return nil
	})
}

// RemoveAttendee gives up memberID's seat while registration is open.
func (s *PostgresStore) RemoveAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error) {
	return s.withLockedLecture(ctx, lectureID, func(tx pgx.Tx, l *model.Lecture) error {
		if err := model.CheckWithdrawal(*l, memberID, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM lecture_attendees WHERE lecture_id = $1 AND member_id = $2`,
			lectureID, memberID,
		); err != nil {
			return storageErr("delete attendee", err)
		}
		l.Attendees = removeMember(l.Attendees, memberID)
		return nil
	})
}

// UpdateLecture locks the lecture, applies mutate and writes back its
// status, recording and admin message.
func (s *PostgresStore) UpdateLecture(ctx context.Context, id string, mutate func(*model.Lecture) error) (model.Lecture, error) {
	return s.withLockedLecture(ctx, id, func(tx pgx.Tx, l *model.Lecture) error {
		if err := mutate(l); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE lectures
			 SET status = $2, recording_url = $3, admin_message = $4, updated_at = $5
			 WHERE id = $1`,
			l.ID, string(l.Status), l.RecordingURL, l.AdminMessage, l.UpdatedAt,
		)
		return storageErr("update lecture", err)
	})
}

func (s *PostgresStore) withLockedLecture(ctx context.Context, id string, fn func(pgx.Tx, *model.Lecture) error) (model.Lecture, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return model.Lecture{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	l, err := getPgLecture(ctx, tx, id, true)
	if err != nil {
		return model.Lecture{}, storageErr("lock lecture", err)
	}
	if err := fn(tx, &l); err != nil {
		return model.Lecture{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Lecture{}, storageErr("commit lecture", err)
	}
	groupAttendees([]model.Lecture{l}, map[string][]string{l.ID: l.Attendees})
	return l, nil
}

// begin opens a transaction with a bounded lock wait.
func (s *PostgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	// SET does not take bind parameters; the value is an integer.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, storageErr("set lock timeout", err)
	}
	return tx, nil
}

// ─── Row helpers ─────────────────────────────────────────────────────────────

func insertPgLecture(ctx context.Context, q pgQuerier, l model.Lecture) error {
	_, err := q.Exec(ctx,
		`INSERT INTO lectures (id, request_id, title, description, instructor_id, starts_at,
		   duration_minutes, mode, venue, meeting_link, capacity, prerequisites, tags, materials_url,
		   status, recording_url, admin_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		l.ID, nullIfEmpty(l.RequestID), l.Title, l.Description, l.InstructorID, l.StartsAt,
		l.DurationMinutes, string(l.Location.Mode()), l.Location.Venue(), l.Location.MeetingLink(),
		l.Capacity, l.Prerequisites, nonNilTags(l.Tags), l.MaterialsURL,
		string(l.Status), l.RecordingURL, l.AdminMessage, l.CreatedAt, l.UpdatedAt,
	)
	return storageErr("insert lecture", err)
}

func getPgLecture(ctx context.Context, q pgQuerier, id string, lock bool) (model.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	l, err := scanPgLecture(q.QueryRow(ctx, query, id))
	if err != nil {
		return model.Lecture{}, err
	}

	rows, err := q.Query(ctx,
		`SELECT member_id FROM lecture_attendees WHERE lecture_id = $1 ORDER BY member_id`, id)
	if err != nil {
		return model.Lecture{}, err
	}
	defer rows.Close()
	l.Attendees = []string{}
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return model.Lecture{}, err
		}
		l.Attendees = append(l.Attendees, memberID)
	}
	return l, rows.Err()
}

func scanPgRequest(row pgx.Row) (model.TalkRequest, error) {
	var (
		r                        model.TalkRequest
		mode, venue, link, state string
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.ProposerID, &r.StartsAt, &r.DurationMinutes,
		&mode, &venue, &link, &r.Capacity, &r.Prerequisites, &r.Tags, &r.MaterialsURL,
		&state, &r.AdminMessage, &r.LectureID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TalkRequest{}, model.ErrNotFound
		}
		return model.TalkRequest{}, err
	}
	if r.Location, err = model.LocationFromColumns(mode, venue, link); err != nil {
		return model.TalkRequest{}, fmt.Errorf("talk request %s: %w", r.ID, err)
	}
	r.Decision = model.Decision(state)
	r.Tags = nonNilTags(r.Tags)
	r.StartsAt, r.CreatedAt, r.UpdatedAt = r.StartsAt.UTC(), r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

func scanPgLecture(row pgx.Row) (model.Lecture, error) {
	var (
		l                         model.Lecture
		mode, venue, link, status string
	)
	err := row.Scan(
		&l.ID, &l.RequestID, &l.Title, &l.Description, &l.InstructorID, &l.StartsAt,
		&l.DurationMinutes, &mode, &venue, &link, &l.Capacity, &l.Prerequisites, &l.Tags, &l.MaterialsURL,
		&status, &l.RecordingURL, &l.AdminMessage, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Lecture{}, model.ErrNotFound
		}
		return model.Lecture{}, err
	}
	if l.Location, err = model.LocationFromColumns(mode, venue, link); err != nil {
		return model.Lecture{}, fmt.Errorf("lecture %s: %w", l.ID, err)
	}
	l.Status = model.LectureStatus(status)
	l.Tags = nonNilTags(l.Tags)
	l.StartsAt, l.CreatedAt, l.UpdatedAt = l.StartsAt.UTC(), l.CreatedAt.UTC(), l.UpdatedAt.UTC()
	return l, nil
}

func removeMember(members []string, memberID string) []string {
	out := members[:0]
	for _, m := range members {
		if m != memberID {
			out = append(out, m)
		}
	}
	return out
}
