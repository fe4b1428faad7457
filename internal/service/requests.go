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

// RequestService runs the talk request approval workflow.
type RequestService struct {
	store Store
	tz    *time.Location
	clock Clock
}

// NewRequestService constructs a RequestService. Talk dates are read in tz.
func NewRequestService(store Store, tz *time.Location, clock Clock) *RequestService {
	if tz == nil {
		tz = time.UTC
	}
	return &RequestService{store: store, tz: tz, clock: clock}
}

// Create validates in and stores a pending request owned by caller.
func (s *RequestService) Create(ctx context.Context, caller auth.Identity, in model.TalkInput) (model.TalkRequest, error) {
	now := s.clock.now()
	startsAt, loc, err := model.ValidateTalk(&in, s.tz, now)
	if err != nil {
		return model.TalkRequest{}, err
	}
	req := model.TalkRequest{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		ProposerID:      caller.ID,
		StartsAt:        startsAt,
		DurationMinutes: in.DurationMinutes,
		Location:        loc,
		Capacity:        in.Capacity,
		Prerequisites:   in.Prerequisites,
		Tags:            nonNil(in.Tags),
		MaterialsURL:    in.MaterialsURL,
		Decision:        model.DecisionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return model.TalkRequest{}, fmt.Errorf("create talk request: %w", err)
	}
	return req, nil
}

// Get returns one request. Callers other than admins only see their own;
// anything else reads as not found.
func (s *RequestService) Get(ctx context.Context, caller auth.Identity, id string) (model.TalkRequest, error) {
	if id == "" {
		return model.TalkRequest{}, model.ErrNotFound
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return model.TalkRequest{}, fmt.Errorf("get talk request: %w", err)
	}
	if !caller.IsAdmin() && req.ProposerID != caller.ID {
		return model.TalkRequest{}, model.ErrNotFound
	}
	return req, nil
}

// List returns requests newest first: all of them for admins, the
// caller's own otherwise. decision may be empty.
func (s *RequestService) List(ctx context.Context, caller auth.Identity, decision string) ([]model.TalkRequest, error) {
	f := model.RequestFilter{Decision: model.Decision(strings.ToLower(strings.TrimSpace(decision)))}
	if f.Decision != "" && !f.Decision.Valid() {
		return nil, model.Invalid("decision", "decision must be one of pending approved rejected")
	}
	if !caller.IsAdmin() {
		f.ProposerID = caller.ID
	}
	reqs, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list talk requests: %w", err)
	}
	return reqs, nil
}

// Approve moves a pending request to approved and materializes its
// lecture. The request and the lecture are written together or not at all.
func (s *RequestService) Approve(ctx context.Context, id, message string) (model.TalkRequest, model.Lecture, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = model.DefaultApprovalMessage
	}
	now := s.clock.now()

	req, lecture, err := s.store.DecideRequest(ctx, id, func(r *model.TalkRequest) (*model.Lecture, error) {
		if err := requirePending(r); err != nil {
			return nil, err
		}
		// A request whose date has passed stays pending; it can only be rejected.
		if !r.StartsAt.After(now) {
			return nil, model.Invalid("date", "date must be in the future")
		}
		l := model.LectureFromRequest(*r, uuid.NewString(), now)
		r.Decision = model.DecisionApproved
		r.AdminMessage = message
		r.LectureID = l.ID
		r.UpdatedAt = now
		return &l, nil
	})
	if err != nil {
		return model.TalkRequest{}, model.Lecture{}, fmt.Errorf("approve talk request: %w", err)
	}
	return req, *lecture, nil
}

// Reject moves a pending request to rejected. message is required.
func (s *RequestService) Reject(ctx context.Context, id, message string) (model.TalkRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.TalkRequest{}, model.Invalid("message", "message is required when rejecting a request")
	}
	now := s.clock.now()

	req, _, err := s.store.DecideRequest(ctx, id, func(r *model.TalkRequest) (*model.Lecture, error) {
		if err := requirePending(r); err != nil {
			return nil, err
		}
		r.Decision = model.DecisionRejected
		r.AdminMessage = message
		r.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return model.TalkRequest{}, fmt.Errorf("reject talk request: %w", err)
	}
	return req, nil
}

func requirePending(r *model.TalkRequest) error {
	if r.Decision != model.DecisionPending {
		return model.Conflict(model.ErrAlreadyDecided, "request already %s", r.Decision)
	}
	return nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
