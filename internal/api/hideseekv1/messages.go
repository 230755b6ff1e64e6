// Package hideseekv1 defines the hideseek.v1 RPC messages, the JSON codec
// they travel with, and the Connect handlers and clients of both services.
package hideseekv1

import "time"

// Zone is a circular geofence.
type Zone struct {
	ID           string  `json:"id"`
	Name         string  `json:"name,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Session is a game session.
type Session struct {
	ID              string     `json:"id"`
	District        string     `json:"district"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	Status          string     `json:"status"`
	MaxParticipants int        `json:"maxParticipants"`
	MaxDrivers      int        `json:"maxDrivers"`
	Zone            *Zone      `json:"zone,omitempty"`
	CreatorID       string     `json:"creatorId"`
	Description     string     `json:"description,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	HidingAt        *time.Time `json:"hidingAt,omitempty"`
	SearchingAt     *time.Time `json:"searchingAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	PendingTriggers int        `json:"pendingTriggers"`
}

// Participant is a user's membership in a session.
type Participant struct {
	UserID        string    `json:"userId"`
	Role          string    `json:"role"`
	PreferredRole string    `json:"preferredRole"`
	JoinedAt      time.Time `json:"joinedAt"`
}

// Photo is a photo submitted for moderation.
type Photo struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	UserID      string     `json:"userId"`
	FileRef     string     `json:"fileRef"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	InsideZone  bool       `json:"insideZone"`
	Status      string     `json:"status"`
	SubmittedAt time.Time  `json:"submittedAt"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	DecidedBy   string     `json:"decidedBy,omitempty"`
}

// Neighbor is a participant near the caller.
type Neighbor struct {
	UserID         string  `json:"userId"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Notification is pushed on the Subscribe stream.
type Notification struct {
	SequenceNo uint64            `json:"sequenceNo"`
	Kind       string            `json:"kind"`
	SessionID  string            `json:"sessionId,omitempty"`
	Text       string            `json:"text"`
	Data       map[string]string `json:"data,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Settings are the automation settings. Durations use Go syntax ("15m").
type Settings struct {
	AutoStartGame          bool   `json:"autoStartGame"`
	AutoStartHiding        bool   `json:"autoStartHiding"`
	AutoStartSearching     bool   `json:"autoStartSearching"`
	AutoEndGame            bool   `json:"autoEndGame"`
	AutoAssignRoles        bool   `json:"autoAssignRoles"`
	ManualControlMode      bool   `json:"manualControlMode"`
	HidingDuration         string `json:"hidingDuration"`
	SearchingDuration      string `json:"searchingDuration"`
	MinParticipantsToStart int    `json:"minParticipantsToStart"`
}

// Stats summarizes the games in progress.
type Stats struct {
	Recruiting      int `json:"recruiting"`
	Hiding          int `json:"hiding"`
	Searching       int `json:"searching"`
	Participants    int `json:"participants"`
	Drivers         int `json:"drivers"`
	Seekers         int `json:"seekers"`
	Observers       int `json:"observers"`
	PendingTriggers int `json:"pendingTriggers"`
}

// GameService messages.

type ListUpcomingRequest struct {
	District string `json:"district,omitempty"`
}

type ListUpcomingResponse struct {
	Sessions []*Session `json:"sessions"`
}

type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type GetSessionResponse struct {
	Session      *Session       `json:"session"`
	Participants []*Participant `json:"participants"`
}

type JoinRequest struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId"`
	PreferredRole string `json:"preferredRole,omitempty"`
}

type JoinResponse struct {
	Participant *Participant `json:"participant"`
}

type LeaveRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type LeaveResponse struct{}

type SubmitLocationRequest struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ObservedAt time.Time `json:"observedAt"`
}

type SubmitLocationResponse struct {
	Sequence   int64    `json:"sequence"`
	InsideZone bool     `json:"insideZone"`
	Flags      []string `json:"flags,omitempty"`
	Message    string   `json:"message,omitempty"`
}

type SubmitPhotoRequest struct {
	SessionID string  `json:"sessionId"`
	UserID    string  `json:"userId"`
	FileRef   string  `json:"fileRef"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

type SubmitPhotoResponse struct {
	Photo   *Photo `json:"photo"`
	Message string `json:"message,omitempty"`
}

type NearbyRequest struct {
	SessionID    string  `json:"sessionId"`
	UserID       string  `json:"userId"`
	RadiusMeters float64 `json:"radiusMeters,omitempty"`
}

type NearbyResponse struct {
	Neighbors []*Neighbor `json:"neighbors"`
}

type SubscribeRequest struct {
	UserID string `json:"userId"`
}

// AdminService messages.

type CreateSessionRequest struct {
	District        string    `json:"district"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	MaxParticipants int       `json:"maxParticipants"`
	MaxDrivers      int       `json:"maxDrivers"`
	CreatorID       string    `json:"creatorId"`
	Description     string    `json:"description,omitempty"`
	Zone            *Zone     `json:"zone,omitempty"`
}

type CreateSessionResponse struct {
	Session *Session `json:"session"`
}

type TransitionRequest struct {
	SessionID string `json:"sessionId"`
	Target    string `json:"target"`
	Actor     string `json:"actor"`
}

type TransitionResponse struct {
	Session *Session `json:"session"`
	Message string   `json:"message,omitempty"`
}

type ListParticipantsRequest struct {
	SessionID string `json:"sessionId"`
}

type ListParticipantsResponse struct {
	Participants []*Participant `json:"participants"`
}

type AssignRolesRequest struct {
	SessionID string `json:"sessionId"`
	Actor     string `json:"actor"`
}

type AssignRolesResponse struct {
	Participants []*Participant `json:"participants"`
}

type ResetRolesRequest struct {
	SessionID string `json:"sessionId"`
	Actor     string `json:"actor"`
}

type ResetRolesResponse struct {
	Cleared int `json:"cleared"`
}

type DecidePhotoRequest struct {
	PhotoID string `json:"photoId"`
	Actor   string `json:"actor"`
}

type DecidePhotoResponse struct {
	Photo *Photo `json:"photo"`
}

type ListPhotosRequest struct {
	SessionID string `json:"sessionId"`
}

type ListPhotosResponse struct {
	Photos []*Photo `json:"photos"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Stats *Stats `json:"stats"`
}

type GetSettingsRequest struct{}

type GetSettingsResponse struct {
	Settings *Settings `json:"settings"`
}

type UpdateSettingsRequest struct {
	Patch map[string]any `json:"patch"`
}

type UpdateSettingsResponse struct {
	Settings *Settings `json:"settings"`
}
