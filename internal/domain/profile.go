package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProfileType string

const (
	ProfileTypeBuyer  ProfileType = "buyer"
	ProfileTypeSeller ProfileType = "seller"
)

func (t ProfileType) Valid() bool {
	return t == ProfileTypeBuyer || t == ProfileTypeSeller
}

type Stage string

// Seller pipeline
const (
	SellerStageLead               Stage = "lead"
	SellerStageValuationScheduled Stage = "valuation_scheduled"
	SellerStageValuationComplete  Stage = "valuation_complete"
	SellerStageListed             Stage = "listed"
	SellerStageUnderOffer         Stage = "under_offer"
	SellerStageSold               Stage = "sold"
)

// Buyer pipeline
const (
	BuyerStageLead             Stage = "lead"
	BuyerStageQualified        Stage = "qualified"
	BuyerStageViewingScheduled Stage = "viewing_scheduled"
	BuyerStageViewed           Stage = "viewed"
	BuyerStageOfferMade        Stage = "offer_made"
	BuyerStageSaleAgreed       Stage = "sale_agreed"
	BuyerStagePurchased        Stage = "purchased"
)

// StageLost is terminal for both pipelines and reachable from any stage.
const StageLost Stage = "lost"

var sellerStages = []Stage{
	SellerStageLead,
	SellerStageValuationScheduled,
	SellerStageValuationComplete,
	SellerStageListed,
	SellerStageUnderOffer,
	SellerStageSold,
	StageLost,
}

var buyerStages = []Stage{
	BuyerStageLead,
	BuyerStageQualified,
	BuyerStageViewingScheduled,
	BuyerStageViewed,
	BuyerStageOfferMade,
	BuyerStageSaleAgreed,
	BuyerStagePurchased,
	StageLost,
}

// StageOrder returns the display ordering of the pipeline for a profile type.
// Transitions are not constrained by it.
func StageOrder(t ProfileType) []Stage {
	var src []Stage
	switch t {
	case ProfileTypeBuyer:
		src = buyerStages
	case ProfileTypeSeller:
		src = sellerStages
	default:
		return nil
	}
	out := make([]Stage, len(src))
	copy(out, src)
	return out
}

// ValidStage reports whether stage belongs to the pipeline of the profile type.
func ValidStage(t ProfileType, stage Stage) bool {
	for _, s := range StageOrder(t) {
		if s == stage {
			return true
		}
	}
	return false
}

// ProfileRef identifies one buyer or seller profile.
type ProfileRef struct {
	ID   uuid.UUID   `json:"profile_id"`
	Type ProfileType `json:"profile_type"`
}

// Profile is a buyer or seller CRM record. Both tables share this shape.
type Profile struct {
	ID             uuid.UUID   `json:"id"`
	Type           ProfileType `json:"profile_type"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Phone          string      `json:"phone"`
	Stage          Stage       `json:"stage"`
	Source         string      `json:"source"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastContactAt  *time.Time  `json:"last_contact_at"`
}

func (p *Profile) Ref() ProfileRef {
	return ProfileRef{ID: p.ID, Type: p.Type}
}
