package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// admissionAttempts bounds how often AddAttendee re-reads a lecture whose
// conditional insert missed but whose fresh state would admit the member.
const admissionAttempts = 3

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteStore persists talk requests and lectures in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open handle; see database.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func encodeTags(tags []string) (string, error) {
	raw, err := json.Marshal(nonNilTags(tags))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTags(raw string) ([]string, error) {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return nonNilTags(tags), nil
}

// ─── Talk requests ───────────────────────────────────────────────────────────

// CreateRequest inserts a new talk request.
func (s *SQLiteStore) CreateRequest(ctx context.Context, req model.TalkRequest) error {
	tags, err := encodeTags(req.Tags)
	if err != nil {
		return storageErr("encode tags", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO talk_requests (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Title, req.Description, req.ProposerID, toMillis(req.StartsAt), req.DurationMinutes,
		string(req.Location.Mode()), req.Location.Venue(), req.Location.MeetingLink(),
		req.Capacity, req.Prerequisites, tags, req.MaterialsURL,
		string(req.Decision), req.AdminMessage, req.LectureID, toMillis(req.CreatedAt), toMillis(req.UpdatedAt),
	)
	return storageErr("insert talk request", err)
}

// GetRequest returns a single talk request or model.ErrNotFound.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (model.TalkRequest, error) {
	req, err := scanSQLiteRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM talk_requests WHERE id = ?`, id))
	if err != nil {
		return model.TalkRequest{}, storageErr("get talk request", err)
	}
	return req, nil
}

// ListRequests returns talk requests newest first.
func (s *SQLiteStore) ListRequests(ctx context.Context, f model.RequestFilter) ([]model.TalkRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.ProposerID != "" {
		where = append(where, "proposer_id = ?")
		args = append(args, f.ProposerID)
	}
	if f.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, string(f.Decision))
	}
	query := `SELECT ` + requestColumns + ` FROM talk_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list talk requests", err)
	}
	defer rows.Close()

	var reqs []model.TalkRequest
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, storageErr("scan talk request", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, storageErr("list talk requests", rows.Err())
}

// DecideRequest reads the request, lets decide mutate it and optionally
// produce a lecture, then writes both in one transaction. Nothing is
// written when decide fails.
func (s *SQLiteStore) DecideRequest(
	ctx context.Context,
	id string,
	decide func(*model.TalkRequest) (*model.Lecture, error),
) (model.TalkRequest, *model.Lecture, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TalkRequest{}, nil, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	req, err := scanSQLiteRequest(tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM talk_requests WHERE id = ?`, id))
	if err != nil {
		return model.TalkRequest{}, nil, storageErr("read talk request", err)
	}

	lecture, err := decide(&req)
	if err != nil {
		return model.TalkRequest{}, nil, err
	}
	if lecture != nil {
		if err := insertSQLiteLecture(ctx, tx, *lecture); err != nil {
			return model.TalkRequest{}, nil, err
		}
	}

	// The pending guard is repeated in SQL so a concurrent decision on
	// another connection cannot be overwritten.
	res, err := tx.ExecContext(ctx,
		`UPDATE talk_requests
		 SET decision = ?, admin_message = ?, lecture_id = ?, updated_at = ?
		 WHERE id = ? AND decision = 'pending'`,
		string(req.Decision), req.AdminMessage, req.LectureID, toMillis(req.UpdatedAt), req.ID,
	)
	if err != nil {
		return model.TalkRequest{}, nil, storageErr("update talk request", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.TalkRequest{}, nil, storageErr("update talk request", err)
	} else if n == 0 {
		return model.TalkRequest{}, nil, model.Conflict(model.ErrAlreadyDecided, "")
	}
	if err := tx.Commit(); err != nil {
		return model.TalkRequest{}, nil, storageErr("commit decision", err)
	}
	return req, lecture, nil
}

// ─── Lectures ────────────────────────────────────────────────────────────────

// CreateLecture inserts a lecture with no attendees.
func (s *SQLiteStore) CreateLecture(ctx context.Context, l model.Lecture) error {
	return insertSQLiteLecture(ctx, s.db, l)
}

// GetLecture returns a lecture with its attendees or model.ErrNotFound.
func (s *SQLiteStore) GetLecture(ctx context.Context, id string) (model.Lecture, error) {
	l, err := getSQLiteLecture(ctx, s.db, id)
	if err != nil {
		return model.Lecture{}, storageErr("get lecture", err)
	}
	return l, nil
}

// ListLectures returns lectures selected by f with their attendees.
func (s *SQLiteStore) ListLectures(ctx context.Context, f model.LectureFilter) ([]model.Lecture, error) {
	var (
		where string
		order = ` ORDER BY starts_at ASC, id`
		args  []any
	)
	switch f.When {
	case model.WhenUpcoming:
		where = ` WHERE starts_at > ?`
		args = append(args, toMillis(f.Now))
	case model.WhenPast:
		where = ` WHERE starts_at <= ?`
		order = ` ORDER BY starts_at DESC, id`
		args = append(args, toMillis(f.Now))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+lectureColumns+` FROM lectures`+where+order, args...)
	if err != nil {
		return nil, storageErr("list lectures", err)
	}
	var lectures []model.Lecture
	for rows.Next() {
		l, err := scanSQLiteLecture(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("scan lecture", err)
		}
		lectures = append(lectures, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("list lectures", err)
	}
	if len(lectures) == 0 {
		return lectures, nil
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT a.lecture_id, a.member_id
		 FROM lecture_attendees a
		 JOIN lectures l ON l.id = a.lecture_id`+strings.ReplaceAll(where, "starts_at", "l.starts_at"),
		args...)
	if err != nil {
		return nil, storageErr("list attendees", err)
	}
	defer rows.Close()
	byLecture := make(map[string][]string, len(lectures))
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

// AddAttendee admits memberID with a single conditional INSERT: the
// window, capacity and duplicate checks are evaluated by the same
// statement that writes the row, under SQLite's write lock. The insert and
// the re-read share a transaction, so a seat is only kept when the caller
// is told about it. When no row is written the re-read reports why.
func (s *SQLiteStore) AddAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error) {
	for range admissionAttempts {
		l, admitted, err := s.tryAdmit(ctx, lectureID, memberID, now)
		if err != nil {
			return model.Lecture{}, err
		}
		if admitted {
			return l, nil
		}
		if err := model.CheckAdmission(l, memberID, now); err != nil {
			return model.Lecture{}, err
		}
		// A seat opened between the insert and the re-read; try again.
	}
	return model.Lecture{}, model.Conflict(model.ErrRegistrationClosed, "")
}

// tryAdmit runs one conditional insert and returns the lecture as read in
// the same transaction. admitted reports whether the row was written and
// committed.
func (s *SQLiteStore) tryAdmit(ctx context.Context, lectureID, memberID string, now time.Time) (l model.Lecture, admitted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Lecture{}, false, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO lecture_attendees (lecture_id, member_id, registered_at)
		 SELECT l.id, ?, ?
		 FROM lectures l
		 WHERE l.id = ?
		   AND l.status = 'scheduled'
		   AND l.starts_at > ?
		   AND (SELECT COUNT(*) FROM lecture_attendees a WHERE a.lecture_id = l.id) < l.capacity
		   AND NOT EXISTS (
		     SELECT 1 FROM lecture_attendees a WHERE a.lecture_id = l.id AND a.member_id = ?
		   )`,
		memberID, toMillis(now), lectureID, toMillis(now), memberID,
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return model.Lecture{}, false, model.Conflict(model.ErrAlreadyRegistered, "")
		}
		return model.Lecture{}, false, storageErr("insert attendee", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Lecture{}, false, storageErr("insert attendee", err)
	}

	l, err = getSQLiteLecture(ctx, tx, lectureID)
	if err != nil {
		return model.Lecture{}, false, storageErr("read lecture", err)
	}
	if n == 0 {
		return l, false, nil
	}
	if err := tx.Commit(); err != nil {
		return model.Lecture{}, false, storageErr("commit attendee", err)
	}
	return l, true, nil
}

// RemoveAttendee gives up memberID's seat while registration is open.
func (s *SQLiteStore) RemoveAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lecture_attendees
		 WHERE lecture_id = ? AND member_id = ?
		   AND EXISTS (
		     SELECT 1 FROM lectures l WHERE l.id = ? AND l.status = 'scheduled' AND l.starts_at > ?
		   )`,
		lectureID, memberID, lectureID, toMillis(now),
	)
	if err != nil {
		return model.Lecture{}, storageErr("delete attendee", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Lecture{}, storageErr("delete attendee", err)
	}
	l, err := s.GetLecture(ctx, lectureID)
	if err != nil {
		return model.Lecture{}, err
	}
	if n == 0 {
		if err := model.CheckWithdrawal(l, memberID, now); err != nil {
			return model.Lecture{}, err
		}
		return model.Lecture{}, model.Conflict(model.ErrNotRegistered, "")
	}
	return l, nil
}

// UpdateLecture reads the lecture, applies mutate and writes back its
// status, recording and admin message in one transaction.
func (s *SQLiteStore) UpdateLecture(ctx context.Context, id string, mutate func(*model.Lecture) error) (model.Lecture, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Lecture{}, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	l, err := getSQLiteLecture(ctx, tx, id)
	if err != nil {
		return model.Lecture{}, storageErr("read lecture", err)
	}
	prev := l.Status
	if err := mutate(&l); err != nil {
		return model.Lecture{}, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE lectures
		 SET status = ?, recording_url = ?, admin_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(l.Status), l.RecordingURL, l.AdminMessage, toMillis(l.UpdatedAt), l.ID, string(prev),
	)
	if err != nil {
		return model.Lecture{}, storageErr("update lecture", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Lecture{}, storageErr("update lecture", err)
	} else if n == 0 {
		return model.Lecture{}, model.Conflict(model.ErrInvalidTransition, "lecture status changed concurrently")
	}
	if err := tx.Commit(); err != nil {
		return model.Lecture{}, storageErr("commit lecture", err)
	}
	return l, nil
}

// ─── Row helpers ─────────────────────────────────────────────────────────────

func insertSQLiteLecture(ctx context.Context, q sqlQuerier, l model.Lecture) error {
	tags, err := encodeTags(l.Tags)
	if err != nil {
		return storageErr("encode tags", err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO lectures (id, request_id, title, description, instructor_id, starts_at,
		   duration_minutes, mode, venue, meeting_link, capacity, prerequisites, tags, materials_url,
		   status, recording_url, admin_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, nullIfEmpty(l.RequestID), l.Title, l.Description, l.InstructorID, toMillis(l.StartsAt),
		l.DurationMinutes, string(l.Location.Mode()), l.Location.Venue(), l.Location.MeetingLink(),
		l.Capacity, l.Prerequisites, tags, l.MaterialsURL,
		string(l.Status), l.RecordingURL, l.AdminMessage, toMillis(l.CreatedAt), toMillis(l.UpdatedAt),
	)
	return storageErr("insert lecture", err)
}

func getSQLiteLecture(ctx context.Context, q sqlQuerier, id string) (model.Lecture, error) {
	l, err := scanSQLiteLecture(q.QueryRowContext(ctx,
		`SELECT `+lectureColumns+` FROM lectures WHERE id = ?`, id))
	if err != nil {
		return model.Lecture{}, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT member_id FROM lecture_attendees WHERE lecture_id = ? ORDER BY member_id`, id)
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

func scanSQLiteRequest(row rowScanner) (model.TalkRequest, error) {
	var (
		r                              model.TalkRequest
		mode, venue, link, state, tags string
		startsAt, createdAt, updatedAt int64
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.ProposerID, &startsAt, &r.DurationMinutes,
		&mode, &venue, &link, &r.Capacity, &r.Prerequisites, &tags, &r.MaterialsURL,
		&state, &r.AdminMessage, &r.LectureID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TalkRequest{}, model.ErrNotFound
		}
		return model.TalkRequest{}, err
	}
	if r.Location, err = model.LocationFromColumns(mode, venue, link); err != nil {
		return model.TalkRequest{}, fmt.Errorf("talk request %s: %w", r.ID, err)
	}
	if r.Tags, err = decodeTags(tags); err != nil {
		return model.TalkRequest{}, err
	}
	r.Decision = model.Decision(state)
	r.StartsAt, r.CreatedAt, r.UpdatedAt = fromMillis(startsAt), fromMillis(createdAt), fromMillis(updatedAt)
	return r, nil
}

func scanSQLiteLecture(row rowScanner) (model.Lecture, error) {
	var (
		l                               model.Lecture
		mode, venue, link, status, tags string
		startsAt, createdAt, updatedAt  int64
	)
	err := row.Scan(
		&l.ID, &l.RequestID, &l.Title, &l.Description, &l.InstructorID, &startsAt,
		&l.DurationMinutes, &mode, &venue, &link, &l.Capacity, &l.Prerequisites, &tags, &l.MaterialsURL,
		&status, &l.RecordingURL, &l.AdminMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Lecture{}, model.ErrNotFound
		}
		return model.Lecture{}, err
	}
	if l.Location, err = model.LocationFromColumns(mode, venue, link); err != nil {
		return model.Lecture{}, fmt.Errorf("lecture %s: %w", l.ID, err)
	}
	if l.Tags, err = decodeTags(tags); err != nil {
		return model.Lecture{}, err
	}
	l.Status = model.LectureStatus(status)
	l.StartsAt, l.CreatedAt, l.UpdatedAt = fromMillis(startsAt), fromMillis(createdAt), fromMillis(updatedAt)
	return l, nil
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
