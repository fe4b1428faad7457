package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/service"
	"github.com/google/uuid"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, newStore func(t *testing.T) service.Store) {
	t.Run("request round trip", func(t *testing.T) { testRequestRoundTrip(t, newStore(t)) })
	t.Run("approve writes both records", func(t *testing.T) { testApprove(t, newStore(t)) })
	t.Run("failed decision writes nothing", func(t *testing.T) { testDecisionRollback(t, newStore(t)) })
	t.Run("lecture insert failure rolls back request", func(t *testing.T) { testLectureInsertRollback(t, newStore(t)) })
	t.Run("concurrent registration respects capacity", func(t *testing.T) { testConcurrentRegistration(t, newStore(t)) })
	t.Run("registration conflicts", func(t *testing.T) { testRegistrationConflicts(t, newStore(t)) })
	t.Run("remove attendee", func(t *testing.T) { testRemoveAttendee(t, newStore(t)) })
	t.Run("list lectures by time", func(t *testing.T) { testListLectures(t, newStore(t)) })
	t.Run("update lecture", func(t *testing.T) { testUpdateLecture(t, newStore(t)) })
}

func newRequest(proposer string, startsAt time.Time) model.TalkRequest {
	return model.TalkRequest{
		ID:              uuid.NewString(),
		Title:           "Intro to Go",
		Description:     "Goroutines and channels",
		ProposerID:      proposer,
		StartsAt:        startsAt,
		DurationMinutes: 60,
		Location:        model.OfflineAt("Hall B"),
		Capacity:        3,
		Prerequisites:   "basic programming",
		Tags:            []string{"go", "concurrency"},
		MaterialsURL:    "https://example.com/slides",
		Decision:        model.DecisionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newLecture(startsAt time.Time, capacity int) model.Lecture {
	return model.Lecture{
		ID:           uuid.NewString(),
		Title:        "Lecture",
		Description:  "Scheduled directly",
		InstructorID: "ines",
		StartsAt:     startsAt,
		Location:     model.OnlineAt("https://meet.example.com/abc"),
		Capacity:     capacity,
		Tags:         []string{},
		Status:       model.StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func mustCreateLecture(t *testing.T, store service.Store, l model.Lecture) model.Lecture {
	t.Helper()
	if err := store.CreateLecture(context.Background(), l); err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	return l
}

func approve(r *model.TalkRequest) (*model.Lecture, error) {
	if r.Decision != model.DecisionPending {
		return nil, model.Conflict(model.ErrAlreadyDecided, "request already %s", r.Decision)
	}
	l := model.LectureFromRequest(*r, uuid.NewString(), now)
	r.Decision = model.DecisionApproved
	r.AdminMessage = model.DefaultApprovalMessage
	r.LectureID = l.ID
	r.UpdatedAt = now
	return &l, nil
}

func testRequestRoundTrip(t *testing.T, store service.Store) {
	ctx := context.Background()
	req := newRequest("alice", now.Add(24*time.Hour))
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	other := newRequest("bob", now.Add(48*time.Hour))
	other.CreatedAt = now.Add(time.Minute)
	if err := store.CreateRequest(ctx, other); err != nil {
		t.Fatalf("create request: %v", err)
	}

	got, err := store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Title != req.Title || got.ProposerID != "alice" || !got.StartsAt.Equal(req.StartsAt) ||
		got.Location != req.Location || got.Capacity != 3 || got.Decision != model.DecisionPending ||
		len(got.Tags) != 2 || got.Tags[1] != "concurrency" {
		t.Fatalf("request = %+v", got)
	}

	if _, err := store.GetRequest(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	mine, err := store.ListRequests(ctx, model.RequestFilter{ProposerID: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != req.ID {
		t.Fatalf("alice's requests = %+v", mine)
	}
	all, err := store.ListRequests(ctx, model.RequestFilter{Decision: model.DecisionPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) < 2 || all[0].ID != other.ID {
		t.Fatalf("pending requests not newest first: %d", len(all))
	}
}

func testApprove(t *testing.T, store service.Store) {
	ctx := context.Background()
	req := newRequest("alice", now.Add(24*time.Hour))
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	decided, lecture, err := store.DecideRequest(ctx, req.ID, approve)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if lecture == nil || decided.LectureID != lecture.ID || decided.Decision != model.DecisionApproved {
		t.Fatalf("decided = %+v lecture = %+v", decided, lecture)
	}

	stored, err := store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if stored.Decision != model.DecisionApproved || stored.LectureID != lecture.ID {
		t.Fatalf("stored request = %+v", stored)
	}
	l, err := store.GetLecture(ctx, lecture.ID)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if l.RequestID != req.ID || l.InstructorID != "alice" || l.Capacity != req.Capacity ||
		l.Status != model.StatusScheduled || len(l.Attendees) != 0 || l.Location != req.Location {
		t.Fatalf("lecture = %+v", l)
	}

	// A second approval is refused and leaves the record alone.
	_, _, err = store.DecideRequest(ctx, req.ID, approve)
	if !errors.Is(err, model.ErrAlreadyDecided) {
		t.Fatalf("err = %v, want ErrAlreadyDecided", err)
	}
	again, _ := store.GetRequest(ctx, req.ID)
	if again.LectureID != lecture.ID || !again.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("request mutated by refused approval: %+v", again)
	}
}

func testDecisionRollback(t *testing.T, store service.Store) {
	ctx := context.Background()
	req := newRequest("alice", now.Add(24*time.Hour))
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	boom := errors.New("boom")
	_, _, err := store.DecideRequest(ctx, req.ID, func(r *model.TalkRequest) (*model.Lecture, error) {
		r.Decision = model.DecisionRejected
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := store.GetRequest(ctx, req.ID)
	if got.Decision != model.DecisionPending {
		t.Fatalf("decision = %q, want pending", got.Decision)
	}

	if _, _, err := store.DecideRequest(ctx, "missing", approve); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func testLectureInsertRollback(t *testing.T, store service.Store) {
	ctx := context.Background()
	existing := mustCreateLecture(t, store, newLecture(now.Add(time.Hour), 5))
	req := newRequest("alice", now.Add(24*time.Hour))
	if err := store.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create request: %v", err)
	}

	// Reusing an existing lecture id makes the lecture insert fail.
	_, _, err := store.DecideRequest(ctx, req.ID, func(r *model.TalkRequest) (*model.Lecture, error) {
		l := model.LectureFromRequest(*r, existing.ID, now)
		r.Decision = model.DecisionApproved
		r.LectureID = l.ID
		return &l, nil
	})
	var sErr *model.StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	got, _ := store.GetRequest(ctx, req.ID)
	if got.Decision != model.DecisionPending || got.LectureID != "" {
		t.Fatalf("half-applied approval: %+v", got)
	}
}

func testConcurrentRegistration(t *testing.T, store service.Store) {
	ctx := context.Background()
	l := mustCreateLecture(t, store, newLecture(now.Add(time.Hour), 3))

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
		other     []error
	)
	for i := range attempts {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			_, err := store.AddAttendee(ctx, l.ID, member, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrLectureFull), errors.Is(err, model.ErrRegistrationClosed):
				refused++
			default:
				other = append(other, err)
			}
		}(fmt.Sprintf("member-%02d", i))
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if succeeded != 3 || refused != 7 {
		t.Fatalf("succeeded = %d, refused = %d, want 3 and 7", succeeded, refused)
	}
	got, err := store.GetLecture(ctx, l.ID)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	if len(got.Attendees) != 3 {
		t.Fatalf("attendees = %d, want 3", len(got.Attendees))
	}
}

func testRegistrationConflicts(t *testing.T, store service.Store) {
	ctx := context.Background()
	open := mustCreateLecture(t, store, newLecture(now.Add(time.Hour), 2))
	started := mustCreateLecture(t, store, newLecture(now.Add(-time.Minute), 2))
	cancelled := newLecture(now.Add(time.Hour), 2)
	cancelled.Status = model.StatusCancelled
	mustCreateLecture(t, store, cancelled)

	l, err := store.AddAttendee(ctx, open.ID, "alice", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(l.Attendees) != 1 || l.Attendees[0] != "alice" {
		t.Fatalf("attendees = %v", l.Attendees)
	}

	tests := []struct {
		name      string
		lectureID string
		member    string
		want      error
	}{
		{"duplicate", open.ID, "alice", model.ErrAlreadyRegistered},
		{"missing lecture", "missing", "bob", model.ErrNotFound},
		{"started", started.ID, "bob", model.ErrRegistrationClosed},
		{"cancelled", cancelled.ID, "bob", model.ErrRegistrationClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.AddAttendee(ctx, tt.lectureID, tt.member, now); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, _ := store.GetLecture(ctx, open.ID)
	if len(got.Attendees) != 1 {
		t.Fatalf("attendees = %d after refused attempts, want 1", len(got.Attendees))
	}
}

func testRemoveAttendee(t *testing.T, store service.Store) {
	ctx := context.Background()
	l := mustCreateLecture(t, store, newLecture(now.Add(time.Hour), 1))
	if _, err := store.AddAttendee(ctx, l.ID, "alice", now); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.AddAttendee(ctx, l.ID, "bob", now); !errors.Is(err, model.ErrLectureFull) {
		t.Fatalf("err = %v, want ErrLectureFull", err)
	}

	if _, err := store.RemoveAttendee(ctx, l.ID, "bob", now); !errors.Is(err, model.ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	got, err := store.RemoveAttendee(ctx, l.ID, "alice", now)
	if err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if len(got.Attendees) != 0 {
		t.Fatalf("attendees = %v, want none", got.Attendees)
	}
	if _, err := store.AddAttendee(ctx, l.ID, "bob", now); err != nil {
		t.Fatalf("register after seat freed: %v", err)
	}
	if _, err := store.RemoveAttendee(ctx, l.ID, "bob", l.StartsAt); !errors.Is(err, model.ErrRegistrationClosed) {
		t.Fatalf("err = %v, want ErrRegistrationClosed", err)
	}
}

func testListLectures(t *testing.T, store service.Store) {
	ctx := context.Background()
	soon := mustCreateLecture(t, store, newLecture(now.Add(time.Hour), 2))
	later := mustCreateLecture(t, store, newLecture(now.Add(48*time.Hour), 2))
	yesterday := mustCreateLecture(t, store, newLecture(now.Add(-24*time.Hour), 2))
	lastWeek := mustCreateLecture(t, store, newLecture(now.Add(-7*24*time.Hour), 2))
	if _, err := store.AddAttendee(ctx, soon.ID, "alice", now); err != nil {
		t.Fatalf("register: %v", err)
	}

	upcoming, err := store.ListLectures(ctx, model.LectureFilter{When: model.WhenUpcoming, Now: now})
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if ids := lectureIDs(upcoming); len(ids) != 2 || ids[0] != soon.ID || ids[1] != later.ID {
		t.Fatalf("upcoming = %v", ids)
	}
	if len(upcoming[0].Attendees) != 1 || len(upcoming[1].Attendees) != 0 {
		t.Fatalf("attendees = %v / %v", upcoming[0].Attendees, upcoming[1].Attendees)
	}

	past, err := store.ListLectures(ctx, model.LectureFilter{When: model.WhenPast, Now: now})
	if err != nil {
		t.Fatalf("list past: %v", err)
	}
	if ids := lectureIDs(past); len(ids) != 2 || ids[0] != yesterday.ID || ids[1] != lastWeek.ID {
		t.Fatalf("past = %v", ids)
	}

	all, err := store.ListLectures(ctx, model.LectureFilter{Now: now})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 || all[0].ID != lastWeek.ID {
		t.Fatalf("all = %v", lectureIDs(all))
	}

	// A lecture starting exactly now has started: it lists as past.
	atStart := soon.StartsAt
	upcoming, err = store.ListLectures(ctx, model.LectureFilter{When: model.WhenUpcoming, Now: atStart})
	if err != nil {
		t.Fatalf("list upcoming at start: %v", err)
	}
	if ids := lectureIDs(upcoming); len(ids) != 1 || ids[0] != later.ID {
		t.Fatalf("upcoming at start = %v", ids)
	}
	past, err = store.ListLectures(ctx, model.LectureFilter{When: model.WhenPast, Now: atStart})
	if err != nil {
		t.Fatalf("list past at start: %v", err)
	}
	if ids := lectureIDs(past); len(ids) != 3 || ids[0] != soon.ID {
		t.Fatalf("past at start = %v", ids)
	}
}

func testUpdateLecture(t *testing.T, store service.Store) {
	ctx := context.Background()
	l := mustCreateLecture(t, store, newLecture(now.Add(-time.Hour), 2))

	got, err := store.UpdateLecture(ctx, l.ID, func(l *model.Lecture) error {
		l.Status = model.StatusCompleted
		l.RecordingURL = "https://cdn.example.com/rec.mp4"
		l.AdminMessage = "thanks"
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Fatalf("status = %q", got.Status)
	}
	stored, _ := store.GetLecture(ctx, l.ID)
	if stored.Status != model.StatusCompleted || stored.RecordingURL == "" || stored.AdminMessage != "thanks" {
		t.Fatalf("stored = %+v", stored)
	}

	refused := errors.New("refused")
	if _, err := store.UpdateLecture(ctx, l.ID, func(l *model.Lecture) error {
		l.Status = model.StatusCancelled
		return refused
	}); !errors.Is(err, refused) {
		t.Fatalf("err = %v, want refused", err)
	}
	stored, _ = store.GetLecture(ctx, l.ID)
	if stored.Status != model.StatusCompleted {
		t.Fatalf("status = %q after refused update", stored.Status)
	}
	if _, err := store.UpdateLecture(ctx, "missing", func(*model.Lecture) error { return nil }); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func lectureIDs(lectures []model.Lecture) []string {
	ids := make([]string, 0, len(lectures))
	for _, l := range lectures {
		ids = append(ids, l.ID)
	}
	return ids
}
