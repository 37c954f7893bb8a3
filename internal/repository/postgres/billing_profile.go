package postgres

import (
	"context"
	"database/sql"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/repository"
)

type billingProfileRepository struct {
	db *sql.DB
}

func NewBillingProfileRepository(db *sql.DB) repository.BillingProfileRepository {
	return &billingProfileRepository{db: db}
}

func (r *billingProfileRepository) ListCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.BillingProfile, error) {
	query := `SELECT bp.id, bp.organization_id, bp.subscription_status, bp.card_expires_at,
	                 COALESCE(bp.provider_customer_id, ''), COALESCE(o.billing_email, '')
	          FROM billing_profiles bp
	          JOIN organizations o ON o.id = bp.organization_id
	          WHERE bp.subscription_status = $1
	            AND bp.card_expires_at >= $2
	            AND bp.card_expires_at <= $3`

	rows, err := r.db.QueryContext(ctx, query, domain.SubscriptionStatusActive, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.BillingProfile
	for rows.Next() {
		var bp domain.BillingProfile
		if err := rows.Scan(&bp.ID, &bp.OrganizationID, &bp.SubscriptionStatus, &bp.CardExpiresAt,
			&bp.ProviderCustomerID, &bp.BillingEmail); err != nil {
			return nil, err
		}
		profiles = append(profiles, bp)
	}
	return profiles, rows.Err()
}
