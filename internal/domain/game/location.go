package game

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Location is one position report of a participant. Reports are append-only.
type Location struct {
	SessionID  string
	UserID     string
	Lat        float64
	Lon        float64
	ObservedAt time.Time // Device time of the fix
	Sequence   int64     // Store assigned, breaks ties between equal ObservedAt
}

// After reports whether l is newer than other by (ObservedAt, Sequence).
func (l Location) After(other Location) bool {
	if !l.ObservedAt.Equal(other.ObservedAt) {
		return l.ObservedAt.After(other.ObservedAt)
	}
	return l.Sequence > other.Sequence
}

// PhotoStatus represents the moderation state of a photo.
type PhotoStatus int

const (
	PhotoPending  PhotoStatus = iota // Waiting for an admin
	PhotoApproved                    // Accepted as proof
	PhotoRejected                    // Refused
)

// String returns the string representation of the photo status.
func (s PhotoStatus) String() string {
	switch s {
	case PhotoPending:
		return "pending"
	case PhotoApproved:
		return "approved"
	case PhotoRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ParsePhotoStatus parses a photo status name as returned by String.
func ParsePhotoStatus(s string) (PhotoStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return PhotoPending, nil
	case "approved":
		return PhotoApproved, nil
	case "rejected":
		return PhotoRejected, nil
	default:
		return 0, errors.Mark(errors.Newf("unknown photo status %q", s), ErrValidation)
	}
}

// Photo is a photo submitted as proof of finding a driver.
type Photo struct {
	ID          string
	SessionID   string
	UserID      string
	FileRef     string // Opaque reference from the chat front-end
	Lat         float64
	Lon         float64
	InsideZone  bool // Geofence verdict at submission time
	Status      PhotoStatus
	SubmittedAt time.Time
	DecidedAt   *time.Time
	DecidedBy   string
}
