// Package model defines the core domain types for talk requests and lectures.
package model

import (
	"slices"
	"time"
)

// Decision is the review state of a TalkRequest.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// DefaultApprovalMessage is stored on a request approved without a message.
const DefaultApprovalMessage = "Your talk request has been approved."

// TalkRequest is a member's proposal to give a talk.
type TalkRequest struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ProposerID      string    `json:"proposer_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        Location  `json:"location"`
	Capacity        int       `json:"capacity"`
	Prerequisites   string    `json:"prerequisites,omitempty"`
	Tags            []string  `json:"tags"`
	MaterialsURL    string    `json:"materials_url,omitempty"`
	Decision        Decision  `json:"decision"`
	AdminMessage    string    `json:"admin_message,omitempty"`
	LectureID       string    `json:"lecture_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Lecture is a scheduled talk with a bounded attendee set.
type Lecture struct {
	ID              string        `json:"id"`
	RequestID       string        `json:"request_id,omitempty"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	InstructorID    string        `json:"instructor_id"`
	StartsAt        time.Time     `json:"starts_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Location        Location      `json:"location"`
	Capacity        int           `json:"capacity"`
	Prerequisites   string        `json:"prerequisites,omitempty"`
	Tags            []string      `json:"tags"`
	MaterialsURL    string        `json:"materials_url,omitempty"`
	Status          LectureStatus `json:"status"`
	RecordingURL    string        `json:"recording_url,omitempty"`
	AdminMessage    string        `json:"admin_message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`

	// Attendees holds member ids. Stores load it sorted.
	Attendees []string `json:"-"`
}

// Remaining returns the number of open seats.
func (l *Lecture) Remaining() int {
	return l.Capacity - len(l.Attendees)
}

// IsFull returns true when no seats remain.
func (l *Lecture) IsFull() bool {
	return len(l.Attendees) >= l.Capacity
}

// HasAttendee reports whether memberID holds a seat.
func (l *Lecture) HasAttendee(memberID string) bool {
	return slices.Contains(l.Attendees, memberID)
}

// LectureFromRequest materializes the lecture produced by approving req.
func LectureFromRequest(req TalkRequest, id string, now time.Time) Lecture {
	return Lecture{
		ID:              id,
		RequestID:       req.ID,
		Title:           req.Title,
		Description:     req.Description,
		InstructorID:    req.ProposerID,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Capacity:        req.Capacity,
		Prerequisites:   req.Prerequisites,
		Tags:            slices.Clone(req.Tags),
		MaterialsURL:    req.MaterialsURL,
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
		Attendees:       []string{},
	}
}

// TalkInput is the payload shared by talk request and lecture creation.
type TalkInput struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"required,max=5000"`
	Date            string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string   `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Mode            Mode     `json:"mode" validate:"required,oneof=online offline"`
	Venue           string   `json:"venue" validate:"max=200"`
	MeetingLink     string   `json:"meeting_link" validate:"omitempty,http_url"`
	Capacity        int      `json:"capacity" validate:"gte=1,lte=100000"`
	Prerequisites   string   `json:"prerequisites" validate:"max=2000"`
	Tags            []string `json:"tags" validate:"max=20,dive,required,max=40"`
	MaterialsURL    string   `json:"materials_url" validate:"omitempty,http_url"`
}

// CreateLectureInput is the payload for creating a lecture directly.
type CreateLectureInput struct {
	TalkInput
	InstructorID string `json:"instructor_id"`
}

// RequestFilter narrows a talk request listing.
type RequestFilter struct {
	ProposerID string
	Decision   Decision
}

// When selects lectures relative to the current time.
type When string

const (
	WhenAny      When = ""
	WhenUpcoming When = "upcoming"
	WhenPast     When = "past"
)

// LectureFilter narrows a lecture listing. Upcoming lists are ordered by
// start time ascending, past lists descending.
type LectureFilter struct {
	When When
	Now  time.Time
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
