// Package repository implements talk request and lecture persistence.
// PostgresStore uses pgx directly (no ORM); SQLiteStore uses
// database/sql over the pure-Go modernc driver. Both are safe for
// concurrent use and never admit more attendees than a lecture seats.
package repository

import (
	"errors"
	"sort"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/model"
)

// storageErr wraps driver failures. Domain errors pass through unchanged
// so callers can match them with errors.Is / errors.As.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *model.ValidationError
		cErr *model.ConflictError
		sErr *model.StorageError
	)
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrForbidden) ||
		errors.As(err, &vErr) || errors.As(err, &cErr) || errors.As(err, &sErr) {
		return err
	}
	return &model.StorageError{Op: op, Err: err}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// groupAttendees attaches member ids to their lectures, sorted.
func groupAttendees(lectures []model.Lecture, byLecture map[string][]string) {
	for i := range lectures {
		members := byLecture[lectures[i].ID]
		if members == nil {
			members = []string{}
		}
		sort.Strings(members)
		lectures[i].Attendees = members
	}
}
