package models

import (
	"time"

	"github.com/google/uuid"
)

// MarkerStatus is the state of the async marker-generation pipeline for an
// ARContent row. See the state machine in the marker package.
type MarkerStatus string

const (
	MarkerStatusPending    MarkerStatus = "pending"
	MarkerStatusProcessing MarkerStatus = "processing"
	MarkerStatusReady      MarkerStatus = "ready"
	MarkerStatusFailed     MarkerStatus = "failed"
)

// ARContent is a publishable unit binding one marker image to one or more
// overlay videos, addressable by a stable UUID.
type ARContent struct {
	ID                 int64
	ProjectID          int64
	CompanyID          int64 // denormalized from Project for query efficiency
	UniqueID           uuid.UUID
	Title              string
	ImagePath          string
	ImageURL           string
	MarkerPath         string
	MarkerURL          string
	MarkerStatus       MarkerStatus
	MarkerFeaturePoints *int
	IsActive           bool
	ActiveVideoID      *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Video is one overlay video belonging to an ARContent.
type Video struct {
	ID            int64
	ARContentID   int64
	Title         string
	VideoPath     string
	VideoURL      string
	DurationSec   int
	Width         int
	Height        int
	MimeType      string
	IsActive      bool
	RotationOrder int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RotationType selects how VideoRotationSchedule.NextFire advances.
type RotationType string

const (
	RotationDaily   RotationType = "daily"
	RotationWeekly  RotationType = "weekly"
	RotationMonthly RotationType = "monthly"
	RotationRandom  RotationType = "random"
)

// VideoRotationSchedule drives scheduled active-video changes for one
// ARContent. video_sequence ids must all belong to the owning ARContent.
// An entry that no longer does is not skipped: rotation.Repository.Rotate
// returns the error and rolls back, so the schedule does not advance.
type VideoRotationSchedule struct {
	ID             int64
	ARContentID    int64
	RotationType   RotationType
	TimeOfDay      *string // "HH:MM", nil unless daily/weekly/monthly
	DayOfWeek      *int    // 1-7, weekly only
	DayOfMonth     *int    // 1-31, monthly only
	VideoSequence  []int64 // ordered video ids
	CurrentIndex   int
	LastRotationAt *time.Time
	NextRotationAt time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotificationKind classifies a Notification row.
type NotificationKind string

const (
	NotificationExpiryWarning   NotificationKind = "expiry_warning"
	NotificationExpired         NotificationKind = "expired"
	NotificationMarkerFailed    NotificationKind = "marker_failed"
	NotificationCredentialFailed NotificationKind = "credential_failed"
	NotificationStorageDegraded NotificationKind = "storage_degraded"
)

// Notification is an append-only event record surfaced to the admin feed.
// CompanyID/ProjectID are nil for connection-scoped events (credential
// failures, storage degradation) that precede or sit outside any company.
type Notification struct {
	ID          int64
	CompanyID   *int64
	ProjectID   *int64
	ARContentID *int64
	Kind        NotificationKind
	Subject     string
	Message     string
	Metadata    map[string]any
	CreatedAt   time.Time
}
