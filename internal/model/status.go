package model

import "time"

// LectureStatus is the lifecycle state of a lecture.
type LectureStatus string

const (
	StatusScheduled LectureStatus = "scheduled"
	StatusOngoing   LectureStatus = "ongoing"
	StatusCancelled LectureStatus = "cancelled"
	StatusCompleted LectureStatus = "completed"
)

// Valid reports whether s is a known status.
func (s LectureStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusOngoing, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s LectureStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransitionTo reports whether an administrator may move a lecture
// stored in s to next.
func (s LectureStatus) CanTransitionTo(next LectureStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusOngoing || next == StatusCancelled || next == StatusCompleted
	case StatusOngoing:
		return next == StatusCancelled || next == StatusCompleted
	}
	return false
}

// Project returns the status a lecture is presented with at now. A
// scheduled lecture whose start has passed shows as completed; the stored
// status is left untouched.
func Project(l Lecture, now time.Time) LectureStatus {
	if l.Status == StatusScheduled && !now.Before(l.StartsAt) {
		return StatusCompleted
	}
	return l.Status
}

// CheckAdmission returns the conflict that prevents memberID from taking a
// seat in l at now, or nil. Checks run in order: window, capacity,
// duplicate.
func CheckAdmission(l Lecture, memberID string, now time.Time) error {
	if l.Status != StatusScheduled || !now.Before(l.StartsAt) {
		return Conflict(ErrRegistrationClosed, "")
	}
	if l.IsFull() {
		return Conflict(ErrLectureFull, "")
	}
	if l.HasAttendee(memberID) {
		return Conflict(ErrAlreadyRegistered, "")
	}
	return nil
}

// CheckWithdrawal returns the conflict that prevents memberID from giving
// up a seat in l at now, or nil.
func CheckWithdrawal(l Lecture, memberID string, now time.Time) error {
	if l.Status != StatusScheduled || !now.Before(l.StartsAt) {
		return Conflict(ErrRegistrationClosed, "")
	}
	if !l.HasAttendee(memberID) {
		return Conflict(ErrNotRegistered, "")
	}
	return nil
}

// LectureView is a lecture as presented to one caller.
type LectureView struct {
	Lecture

	// Status shadows the embedded stored status in JSON.
	Status        LectureStatus `json:"status"`
	StoredStatus  LectureStatus `json:"stored_status"`
	AttendeeCount int           `json:"attendee_count"`
	SeatsLeft     int           `json:"seats_left"`
	IsRegistered  bool          `json:"is_registered"`
}

// NewLectureView projects l for viewerID at now.
func NewLectureView(l Lecture, viewerID string, now time.Time) LectureView {
	return LectureView{
		Lecture:       l,
		Status:        Project(l, now),
		StoredStatus:  l.Status,
		AttendeeCount: len(l.Attendees),
		SeatsLeft:     max(l.Remaining(), 0),
		IsRegistered:  viewerID != "" && l.HasAttendee(viewerID),
	}
}
