package user

import (
	"fmt"
	"strings"
	"time"
)

// ActiveStatus is the lifecycle state of a user account.
type ActiveStatus string

const (
	StatusActive   ActiveStatus = "active"
	StatusInactive ActiveStatus = "inactive"
)

// ParseActiveStatus converts raw input into an ActiveStatus.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseActiveStatus(s string) (ActiveStatus, error) {
	switch st := ActiveStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive:
		return st, nil
	default:
		return "", fmt.Errorf("unknown active status %q", s)
	}
}

// Valid reports whether s is one of the known statuses.
func (s ActiveStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

func (s ActiveStatus) String() string {
	return string(s)
}

// User represents a user entity in the system.
type User struct {
	ID           int64        // ID is the unique identifier for the user
	Name         string       // Name is the full name of the user
	Email        string       // Email is the contact address of the user
	ActiveStatus ActiveStatus // ActiveStatus is the account state
	CreatedAt    time.Time    // CreatedAt is set once on creation
	UpdatedAt    time.Time    // UpdatedAt is refreshed on every update
	Settings     []Setting    // Settings are owned by the user
}

// Setting is a single name/value pair owned by a user.
type Setting struct {
	ID     int64
	UserID int64
	Name   string
	Value  string
}

// Touch refreshes UpdatedAt to now, keeping it strictly after its previous
// value even when the clock has not advanced (or went backwards).
func (u *User) Touch(now time.Time) {
	if !now.After(u.UpdatedAt) {
		now = u.UpdatedAt.Add(time.Microsecond)
	}
	u.UpdatedAt = now
}
