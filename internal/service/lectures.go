package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/auth"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
	"github.com/google/uuid"
)

// LectureService handles registration, listings and administrative
// status changes for lectures.
type LectureService struct {
	store Store
	tz    *time.Location
	clock Clock
}

// NewLectureService constructs a LectureService. Talk dates are read in tz.
func NewLectureService(store Store, tz *time.Location, clock Clock) *LectureService {
	if tz == nil {
		tz = time.UTC
	}
	return &LectureService{store: store, tz: tz, clock: clock}
}

// Create schedules a lecture directly, bypassing the request workflow.
// The instructor defaults to the caller.
func (s *LectureService) Create(ctx context.Context, caller auth.Identity, in model.CreateLectureInput) (model.LectureView, error) {
	now := s.clock.now()
	startsAt, loc, err := model.ValidateTalk(&in.TalkInput, s.tz, now)
	if err != nil {
		return model.LectureView{}, err
	}
	instructor := strings.TrimSpace(in.InstructorID)
	if instructor == "" {
		instructor = caller.ID
	}
	l := model.Lecture{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		InstructorID:    instructor,
		StartsAt:        startsAt,
		DurationMinutes: in.DurationMinutes,
		Location:        loc,
		Capacity:        in.Capacity,
		Prerequisites:   in.Prerequisites,
		Tags:            nonNil(in.Tags),
		MaterialsURL:    in.MaterialsURL,
		Status:          model.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
		Attendees:       []string{},
	}
	if err := s.store.CreateLecture(ctx, l); err != nil {
		return model.LectureView{}, fmt.Errorf("create lecture: %w", err)
	}
	return model.NewLectureView(l, caller.ID, now), nil
}

// Get returns one lecture as seen by caller.
func (s *LectureService) Get(ctx context.Context, caller auth.Identity, id string) (model.LectureView, error) {
	if id == "" {
		return model.LectureView{}, model.ErrNotFound
	}
	l, err := s.store.GetLecture(ctx, id)
	if err != nil {
		return model.LectureView{}, fmt.Errorf("get lecture: %w", err)
	}
	return model.NewLectureView(l, caller.ID, s.clock.now()), nil
}

// List returns lectures selected by when ("upcoming", "past" or "") with
// their projected status. Selection is by start time, so a scheduled
// lecture that has started lists under past as completed.
func (s *LectureService) List(ctx context.Context, caller auth.Identity, when string) ([]model.LectureView, error) {
	w := model.When(strings.ToLower(strings.TrimSpace(when)))
	switch w {
	case model.WhenAny, model.WhenUpcoming, model.WhenPast:
	default:
		return nil, model.Invalid("when", "when must be one of upcoming past")
	}
	now := s.clock.now()
	lectures, err := s.store.ListLectures(ctx, model.LectureFilter{When: w, Now: now})
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	views := make([]model.LectureView, 0, len(lectures))
	for _, l := range lectures {
		views = append(views, model.NewLectureView(l, caller.ID, now))
	}
	return views, nil
}

// Register admits caller into the lecture. The capacity, window and
// duplicate checks are enforced atomically by the store.
func (s *LectureService) Register(ctx context.Context, caller auth.Identity, lectureID string) (model.LectureView, error) {
	if lectureID == "" {
		return model.LectureView{}, model.ErrNotFound
	}
	now := s.clock.now()
	l, err := s.store.AddAttendee(ctx, lectureID, caller.ID, now)
	if err != nil {
		return model.LectureView{}, fmt.Errorf("register for lecture: %w", err)
	}
	return model.NewLectureView(l, caller.ID, now), nil
}

// Unregister gives up caller's seat while registration is still open.
func (s *LectureService) Unregister(ctx context.Context, caller auth.Identity, lectureID string) (model.LectureView, error) {
	if lectureID == "" {
		return model.LectureView{}, model.ErrNotFound
	}
	now := s.clock.now()
	l, err := s.store.RemoveAttendee(ctx, lectureID, caller.ID, now)
	if err != nil {
		return model.LectureView{}, fmt.Errorf("unregister from lecture: %w", err)
	}
	return model.NewLectureView(l, caller.ID, now), nil
}

// Attendees lists member ids for admins and the lecture's instructor.
func (s *LectureService) Attendees(ctx context.Context, caller auth.Identity, lectureID string) ([]string, error) {
	l, err := s.store.GetLecture(ctx, lectureID)
	if err != nil {
		return nil, fmt.Errorf("get lecture: %w", err)
	}
	if !caller.IsAdmin() && l.InstructorID != caller.ID {
		return nil, model.ErrForbidden
	}
	return nonNil(l.Attendees), nil
}

// SetStatus applies an administrative transition. It checks the stored
// status, not the projected one.
func (s *LectureService) SetStatus(ctx context.Context, caller auth.Identity, lectureID, status, message string) (model.LectureView, error) {
	next := model.LectureStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return model.LectureView{}, model.Invalid("status", "status must be one of scheduled ongoing cancelled completed")
	}
	message = strings.TrimSpace(message)
	now := s.clock.now()

	l, err := s.store.UpdateLecture(ctx, lectureID, func(l *model.Lecture) error {
		if !l.Status.CanTransitionTo(next) {
			return model.Conflict(model.ErrInvalidTransition, "cannot move a %s lecture to %s", l.Status, next)
		}
		l.Status = next
		if message != "" {
			l.AdminMessage = message
		}
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.LectureView{}, fmt.Errorf("set lecture status: %w", err)
	}
	return model.NewLectureView(l, caller.ID, now), nil
}

// Cancel cancels a scheduled or ongoing lecture.
func (s *LectureService) Cancel(ctx context.Context, caller auth.Identity, lectureID, message string) (model.LectureView, error) {
	return s.SetStatus(ctx, caller, lectureID, string(model.StatusCancelled), message)
}

// AttachRecording stores a recording reference. Admins and the lecture's
// instructor may do this; cancelled lectures have no recording.
func (s *LectureService) AttachRecording(ctx context.Context, caller auth.Identity, lectureID, url string) (model.LectureView, error) {
	url, err := model.ValidateRecordingURL(url)
	if err != nil {
		return model.LectureView{}, err
	}
	now := s.clock.now()

	l, err := s.store.UpdateLecture(ctx, lectureID, func(l *model.Lecture) error {
		if !caller.IsAdmin() && l.InstructorID != caller.ID {
			return model.ErrForbidden
		}
		if l.Status == model.StatusCancelled {
			return model.Conflict(model.ErrInvalidTransition, "lecture is cancelled")
		}
		l.RecordingURL = url
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return model.LectureView{}, fmt.Errorf("attach recording: %w", err)
	}
	return model.NewLectureView(l, caller.ID, now), nil
}
