package model

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Trim strips surrounding whitespace from every free-text field.
func (in *TalkInput) Trim() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Mode = Mode(strings.ToLower(strings.TrimSpace(string(in.Mode))))
	in.Venue = strings.TrimSpace(in.Venue)
	in.MeetingLink = strings.TrimSpace(in.MeetingLink)
	in.Prerequisites = strings.TrimSpace(in.Prerequisites)
	in.MaterialsURL = strings.TrimSpace(in.MaterialsURL)
	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	in.Tags = tags
}

// ValidateTalk trims and checks in, returning the start instant (date and
// time read in tz) and the location. The start must be after now.
func ValidateTalk(in *TalkInput, tz *time.Location, now time.Time) (time.Time, Location, error) {
	in.Trim()
	if err := validate.Struct(in); err != nil {
		return time.Time{}, Location{}, fieldError(err)
	}

	loc, err := locationOf(in)
	if err != nil {
		return time.Time{}, Location{}, err
	}

	if tz == nil {
		tz = time.UTC
	}
	startsAt, err := time.ParseInLocation("2006-01-02 15:04", in.Date+" "+in.Time, tz)
	if err != nil {
		return time.Time{}, Location{}, Invalid("date", "date and time do not form a valid instant")
	}
	if !startsAt.After(now) {
		return time.Time{}, Location{}, Invalid("date", "date must be in the future")
	}
	return startsAt.UTC(), loc, nil
}

// ValidateRecordingURL checks a recording reference.
func ValidateRecordingURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", Invalid("url", "url is required")
	}
	if err := validate.Var(raw, "http_url"); err != nil {
		return "", Invalid("url", "url must be a valid http(s) URL")
	}
	return raw, nil
}

func locationOf(in *TalkInput) (Location, error) {
	switch in.Mode {
	case ModeOffline:
		if in.Venue == "" {
			return Location{}, Invalid("venue", "venue is required for offline talks")
		}
		if in.MeetingLink != "" {
			return Location{}, Invalid("meeting_link", "meeting_link must be empty for offline talks")
		}
		return OfflineAt(in.Venue), nil
	case ModeOnline:
		if in.MeetingLink == "" {
			return Location{}, Invalid("meeting_link", "meeting_link is required for online talks")
		}
		if in.Venue != "" {
			return Location{}, Invalid("venue", "venue must be empty for online talks")
		}
		if u, err := url.Parse(in.MeetingLink); err != nil || u.Host == "" {
			return Location{}, Invalid("meeting_link", "meeting_link must be a valid URL")
		}
		return OnlineAt(in.MeetingLink), nil
	}
	return Location{}, Invalid("mode", "mode must be one of online offline")
}

func fieldError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return Invalid("", "%s", err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return Invalid(field, "%s is required", field)
	case "gte":
		if fe.Param() == "1" {
			return Invalid(field, "%s must be a positive integer", field)
		}
		return Invalid(field, "%s must be at least %s", field, fe.Param())
	case "lte":
		return Invalid(field, "%s must be at most %s", field, fe.Param())
	case "max":
		return Invalid(field, "%s is too long (max %s)", field, fe.Param())
	case "oneof":
		return Invalid(field, "%s must be one of %s", field, fe.Param())
	case "datetime":
		return Invalid(field, "%s must match the layout %s", field, fe.Param())
	case "http_url":
		return Invalid(field, "%s must be a valid http(s) URL", field)
	}
	return Invalid(field, "%s is invalid", field)
}
