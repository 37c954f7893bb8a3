package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusTrial         AccountStatus = "trial"
	AccountStatusTrialExpired  AccountStatus = "trial_expired"
	AccountStatusPaymentFailed AccountStatus = "payment_failed"
	AccountStatusUnsubscribed  AccountStatus = "unsubscribed"
	AccountStatusActive        AccountStatus = "active"
	AccountStatusArchived      AccountStatus = "archived"
)

// GraceBearingStatuses are the statuses that archive once grace_period_ends_at passes.
var GraceBearingStatuses = []AccountStatus{
	AccountStatusTrialExpired,
	AccountStatusPaymentFailed,
	AccountStatusUnsubscribed,
}

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusTrial, AccountStatusTrialExpired, AccountStatusPaymentFailed,
		AccountStatusUnsubscribed, AccountStatusActive, AccountStatusArchived:
		return true
	}
	return false
}

// IsGraceBearing reports whether the status runs on a grace period toward archival.
func (s AccountStatus) IsGraceBearing() bool {
	for _, g := range GraceBearingStatuses {
		if s == g {
			return true
		}
	}
	return false
}

// GracePeriodEnd returns the instant a grace period started at now ends.
func GracePeriodEnd(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 24 * time.Hour)
}

type Organization struct {
	ID                    uuid.UUID     `json:"id"`
	Name                  string        `json:"name"`
	BillingEmail          string        `json:"billing_email"`
	AccountStatus         AccountStatus `json:"account_status"`
	TrialEndsAt           *time.Time    `json:"trial_ends_at"`
	GracePeriodEndsAt     *time.Time    `json:"grace_period_ends_at"`
	ArchivedAt            *time.Time    `json:"archived_at"`
	ReadOnlyReason        string        `json:"read_only_reason"`
	CreditSpendingEnabled bool          `json:"credit_spending_enabled"`
	IsComped              bool          `json:"is_comped"`
	IsActive              bool          `json:"is_active"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// OrganizationPatch lists the columns written together with a status transition.
// Nil fields are left untouched.
type OrganizationPatch struct {
	GracePeriodEndsAt     *time.Time
	ArchivedAt            *time.Time
	ReadOnlyReason        *string
	CreditSpendingEnabled *bool
	IsActive              *bool
}

// Apply copies the non-nil patch fields onto the organization.
func (p OrganizationPatch) Apply(o *Organization) {
	if p.GracePeriodEndsAt != nil {
		t := *p.GracePeriodEndsAt
		o.GracePeriodEndsAt = &t
	}
	if p.ArchivedAt != nil {
		t := *p.ArchivedAt
		o.ArchivedAt = &t
	}
	if p.ReadOnlyReason != nil {
		o.ReadOnlyReason = *p.ReadOnlyReason
	}
	if p.CreditSpendingEnabled != nil {
		o.CreditSpendingEnabled = *p.CreditSpendingEnabled
	}
	if p.IsActive != nil {
		o.IsActive = *p.IsActive
	}
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusNone     SubscriptionStatus = "none"
)

type BillingProfile struct {
	ID                 uuid.UUID          `json:"id"`
	OrganizationID     uuid.UUID          `json:"organization_id"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	CardExpiresAt      *time.Time         `json:"card_expires_at"`
	ProviderCustomerID string             `json:"provider_customer_id"`
	// BillingEmail is joined from the owning organization.
	BillingEmail string `json:"billing_email"`
}
