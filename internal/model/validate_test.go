package model

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func validOffline() TalkInput {
	return TalkInput{
		Title:       "  Intro to Go  ",
		Description: "Goroutines and channels",
		Date:        "2026-03-10",
		Time:        "18:30",
		Mode:        ModeOffline,
		Venue:       "Hall B",
		Capacity:    30,
		Tags:        []string{" go ", "", "concurrency"},
	}
}

func TestValidateTalkAccepts(t *testing.T) {
	in := validOffline()
	startsAt, loc, err := ValidateTalk(&in, time.UTC, testNow)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if want := time.Date(2026, time.March, 10, 18, 30, 0, 0, time.UTC); !startsAt.Equal(want) {
		t.Fatalf("startsAt = %v, want %v", startsAt, want)
	}
	if loc.Mode() != ModeOffline || loc.Venue() != "Hall B" || loc.MeetingLink() != "" {
		t.Fatalf("location = %+v", loc)
	}
	if in.Title != "Intro to Go" {
		t.Fatalf("title = %q, want trimmed", in.Title)
	}
	if len(in.Tags) != 2 || in.Tags[0] != "go" || in.Tags[1] != "concurrency" {
		t.Fatalf("tags = %q", in.Tags)
	}
}

func TestValidateTalkReadsDateInZone(t *testing.T) {
	tz := time.FixedZone("UTC+2", 2*60*60)
	in := validOffline()
	startsAt, _, err := ValidateTalk(&in, tz, testNow)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if want := time.Date(2026, time.March, 10, 16, 30, 0, 0, time.UTC); !startsAt.Equal(want) {
		t.Fatalf("startsAt = %v, want %v", startsAt, want)
	}
}

func TestValidateTalkOnline(t *testing.T) {
	in := validOffline()
	in.Mode = ModeOnline
	in.Venue = ""
	in.MeetingLink = "https://meet.example.com/abc"

	_, loc, err := ValidateTalk(&in, time.UTC, testNow)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if loc.Mode() != ModeOnline || loc.MeetingLink() != "https://meet.example.com/abc" || loc.Venue() != "" {
		t.Fatalf("location = %+v", loc)
	}
}

func TestValidateTalkRejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*TalkInput)
		field string
	}{
		{"missing title", func(in *TalkInput) { in.Title = "   " }, "title"},
		{"missing description", func(in *TalkInput) { in.Description = "" }, "description"},
		{"missing date", func(in *TalkInput) { in.Date = "" }, "date"},
		{"malformed date", func(in *TalkInput) { in.Date = "10/03/2026" }, "date"},
		{"missing time", func(in *TalkInput) { in.Time = "" }, "time"},
		{"malformed time", func(in *TalkInput) { in.Time = "25:00" }, "time"},
		{"missing mode", func(in *TalkInput) { in.Mode = "" }, "mode"},
		{"unknown mode", func(in *TalkInput) { in.Mode = "hybrid" }, "mode"},
		{"zero capacity", func(in *TalkInput) { in.Capacity = 0 }, "capacity"},
		{"negative capacity", func(in *TalkInput) { in.Capacity = -4 }, "capacity"},
		{"past date", func(in *TalkInput) { in.Date = "2026-02-28" }, "date"},
		{"now is not future", func(in *TalkInput) { in.Date, in.Time = "2026-03-01", "12:00" }, "date"},
		{"offline without venue", func(in *TalkInput) { in.Venue = "" }, "venue"},
		{"offline with link", func(in *TalkInput) { in.MeetingLink = "https://meet.example.com/x" }, "meeting_link"},
		{"online without link", func(in *TalkInput) { in.Mode, in.Venue = ModeOnline, "" }, "meeting_link"},
		{"online with venue", func(in *TalkInput) { in.Mode, in.MeetingLink = ModeOnline, "https://meet.example.com/x" }, "venue"},
		{"online bad link", func(in *TalkInput) { in.Mode, in.Venue, in.MeetingLink = ModeOnline, "", "not a url" }, "meeting_link"},
		{"bad materials url", func(in *TalkInput) { in.MaterialsURL = "ftp://files" }, "materials_url"},
		{"negative duration", func(in *TalkInput) { in.DurationMinutes = -1 }, "duration_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validOffline()
			tt.edit(&in)
			_, _, err := ValidateTalk(&in, time.UTC, testNow)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("field = %q (%s), want %q", vErr.Field, vErr.Message, tt.field)
			}
		})
	}
}

func TestValidateRecordingURL(t *testing.T) {
	if got, err := ValidateRecordingURL(" https://cdn.example.com/rec.mp4 "); err != nil || got != "https://cdn.example.com/rec.mp4" {
		t.Fatalf("got %q, %v", got, err)
	}
	for _, raw := range []string{"", "   ", "recording.mp4"} {
		if _, err := ValidateRecordingURL(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestValidateTalkLeavesCallerTagsIntact(t *testing.T) {
	tags := []string{" go ", "", "concurrency"}
	in := validOffline()
	in.Tags = tags
	if _, _, err := ValidateTalk(&in, time.UTC, testNow); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if tags[0] != " go " || tags[1] != "" || tags[2] != "concurrency" {
		t.Fatalf("caller tags = %q, want untouched", tags)
	}
	if len(in.Tags) != 2 || in.Tags[0] != "go" {
		t.Fatalf("trimmed tags = %q", in.Tags)
	}
}
