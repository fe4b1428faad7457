package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode is how a talk is delivered.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// Location is where a talk happens: a venue for offline talks or a
// meeting link for online ones. The zero value is no location.
type Location struct {
	mode  Mode
	place string
}

// OfflineAt returns an offline location held at venue.
func OfflineAt(venue string) Location {
	return Location{mode: ModeOffline, place: venue}
}

// OnlineAt returns an online location reachable at link.
func OnlineAt(link string) Location {
	return Location{mode: ModeOnline, place: link}
}

// Mode returns the delivery mode.
func (l Location) Mode() Mode { return l.mode }

// Venue returns the venue, or "" for online talks.
func (l Location) Venue() string {
	if l.mode == ModeOffline {
		return l.place
	}
	return ""
}

// MeetingLink returns the meeting link, or "" for offline talks.
func (l Location) MeetingLink() string {
	if l.mode == ModeOnline {
		return l.place
	}
	return ""
}

// IsZero reports whether l carries no location.
func (l Location) IsZero() bool { return l.mode == "" }

// LocationFromColumns rebuilds a Location from its stored columns.
func LocationFromColumns(mode, venue, meetingLink string) (Location, error) {
	switch Mode(mode) {
	case ModeOffline:
		if venue == "" || meetingLink != "" {
			return Location{}, fmt.Errorf("offline location needs exactly a venue")
		}
		return OfflineAt(venue), nil
	case ModeOnline:
		if meetingLink == "" || venue != "" {
			return Location{}, fmt.Errorf("online location needs exactly a meeting link")
		}
		return OnlineAt(meetingLink), nil
	}
	return Location{}, fmt.Errorf("unknown mode %q", mode)
}

type locationJSON struct {
	Mode        Mode   `json:"mode"`
	Venue       string `json:"venue,omitempty"`
	MeetingLink string `json:"meeting_link,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(locationJSON{Mode: l.mode, Venue: l.Venue(), MeetingLink: l.MeetingLink()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw locationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	loc, err := LocationFromColumns(string(raw.Mode), strings.TrimSpace(raw.Venue), strings.TrimSpace(raw.MeetingLink))
	if err != nil {
		return err
	}
	*l = loc
	return nil
}
