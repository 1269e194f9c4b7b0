package models

import "time"

// SubscriptionTier is the commercial plan a Company is on.
type SubscriptionTier string

const (
	TierTrial      SubscriptionTier = "trial"
	TierStandard   SubscriptionTier = "standard"
	TierEnterprise SubscriptionTier = "enterprise"
)

// StorageStatus reflects whether a Company's storage folders were
// provisioned successfully at creation time.
type StorageStatus string

const (
	StorageStatusOK       StorageStatus = "ok"
	StorageStatusDegraded StorageStatus = "degraded"
)

// Company is a client company registered by an operator.
type Company struct {
	ID                  int64
	Name                string
	Slug                string
	ContactEmail        string
	StorageConnectionID int64
	StoragePath         string
	StorageQuotaBytes   int64
	StorageUsedBytes    int64
	StorageStatus       StorageStatus
	SubscriptionTier    SubscriptionTier
	SubscriptionExpires *time.Time
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ProjectStatus is the lifecycle state of a Project.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusExpired  ProjectStatus = "expired"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project groups ARContent under a company with an expiry window.
type Project struct {
	ID                     int64
	CompanyID              int64
	Name                   string
	StartsAt               time.Time
	ExpiresAt              *time.Time
	Status                 ProjectStatus
	NotifyBeforeExpiryDays int
	LastNotificationSentAt *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
