package models

import (
	"strings"
	"time"

	dErrors "weict/pkg/domain-errors"
)

// Column widths of the registrations table.
const (
	MaxNameLength        = 255
	MaxEmailLength       = 255
	MaxPhoneLength       = 20
	MaxInstitutionLength = 255
	MaxTopicLength       = 100
)

// ErrMissingFields is the client-facing message for an incomplete submission.
const ErrMissingFields = "Missing required fields"

// Registration is one stored workshop registration.
//
// Invariants:
//   - all five submitted fields are non-empty
//   - ID and RegisteredAt are assigned by the store and never change
type Registration struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Institution  string    `json:"institution"`
	Topic        string    `json:"topic"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Submission is the registration form as posted by the client.
type Submission struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Institution string `json:"institution"`
	Topic       string `json:"topic"`
}

// Validate requires every field to be present. Whitespace-only values count
// as missing; the values themselves are stored as submitted.
func (s *Submission) Validate() error {
	if s == nil {
		return dErrors.New(dErrors.CodeValidation, ErrMissingFields)
	}
	if len(s.MissingFields()) > 0 {
		return dErrors.New(dErrors.CodeValidation, ErrMissingFields)
	}
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"name", s.Name, MaxNameLength},
		{"email", s.Email, MaxEmailLength},
		{"phone", s.Phone, MaxPhoneLength},
		{"institution", s.Institution, MaxInstitutionLength},
		{"topic", s.Topic, MaxTopicLength},
	} {
		if len([]rune(f.value)) > f.max {
			return dErrors.New(dErrors.CodeValidation, f.name+" exceeds maximum length")
		}
	}
	return nil
}

// MissingFields lists the JSON names of the empty fields, in form order.
func (s *Submission) MissingFields() []string {
	var missing []string
	if blank(s.Name) {
		missing = append(missing, "name")
	}
	if blank(s.Email) {
		missing = append(missing, "email")
	}
	if blank(s.Phone) {
		missing = append(missing, "phone")
	}
	if blank(s.Institution) {
		missing = append(missing, "institution")
	}
	if blank(s.Topic) {
		missing = append(missing, "topic")
	}
	return missing
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
