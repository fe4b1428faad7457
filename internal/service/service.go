// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
)

// Store is the persistence contract shared by the PostgreSQL and SQLite
// repositories.
type Store interface {
	CreateRequest(ctx context.Context, req model.TalkRequest) error
	GetRequest(ctx context.Context, id string) (model.TalkRequest, error)
	ListRequests(ctx context.Context, f model.RequestFilter) ([]model.TalkRequest, error)
	// DecideRequest runs decide against the current request and persists
	// the request together with the lecture it returns, atomically.
	DecideRequest(ctx context.Context, id string, decide func(*model.TalkRequest) (*model.Lecture, error)) (model.TalkRequest, *model.Lecture, error)

	CreateLecture(ctx context.Context, l model.Lecture) error
	GetLecture(ctx context.Context, id string) (model.Lecture, error)
	ListLectures(ctx context.Context, f model.LectureFilter) ([]model.Lecture, error)
	// AddAttendee admits memberID if the lecture is open, not full and the
	// member is not listed, as one atomic step.
	AddAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error)
	RemoveAttendee(ctx context.Context, lectureID, memberID string, now time.Time) (model.Lecture, error)
	UpdateLecture(ctx context.Context, id string, mutate func(*model.Lecture) error) (model.Lecture, error)
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
