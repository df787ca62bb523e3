package repositories

import (
	"context"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// ---------------------------------------------------------------------
// Contact info captured on grab_offer
// ---------------------------------------------------------------------

type ContactInfoRepository interface {
	// Create returns utils.ErrEmailExists or utils.ErrPhoneExists when the
	// corresponding unique constraint fires.
	Create(ctx context.Context, ci *models.ContactInfo) error
}

type contactInfoRepository struct {
	db DB
}

func NewContactInfoRepository(db DB) ContactInfoRepository {
	return &contactInfoRepository{db: db}
}

func (r *contactInfoRepository) Create(ctx context.Context, ci *models.ContactInfo) error {
	q := `
		INSERT INTO contact_infos (user_id, offer_id, referral_id, name, email, mobile, visitor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, q,
		ci.UserID, ci.OfferID, ci.ReferralID, ci.Name, ci.Email, ci.Mobile, ci.VisitorID, ci.CreatedAt,
	).Scan(&ci.ID)
	if constraint, dup := uniqueViolation(err); dup {
		switch constraint {
		case "contact_infos_email_key":
			return utils.ErrEmailExists
		case "contact_infos_mobile_key":
			return utils.ErrPhoneExists
		}
	}
	return err
}

// ---------------------------------------------------------------------
// Google form submissions
// ---------------------------------------------------------------------

type GoogleFormRepository interface {
	MarkSubmitted(ctx context.Context, offerID int64, promoter models.Promoter) (*models.GoogleFormSubmission, error)
}

type googleFormRepository struct {
	db DB
}

func NewGoogleFormRepository(db DB) GoogleFormRepository {
	return &googleFormRepository{db: db}
}

func (r *googleFormRepository) MarkSubmitted(
	ctx context.Context,
	offerID int64,
	promoter models.Promoter,
) (*models.GoogleFormSubmission, error) {
	var visitorID *string
	if promoter.IsAnonymous() {
		visitorID = &promoter.VisitorID
	}

	// Partial unique indexes cannot be named as a conflict target, so update
	// first and insert only when nothing matched.
	var update string
	args := []any{offerID}
	if promoter.UserID != nil {
		update = `UPDATE google_form_submissions SET submitted = TRUE WHERE offer_id = $1 AND user_id = $2`
		args = append(args, *promoter.UserID)
	} else {
		update = `UPDATE google_form_submissions SET submitted = TRUE WHERE offer_id = $1 AND user_id IS NULL AND visitor_id = $2`
		args = append(args, promoter.VisitorID)
	}
	update += ` RETURNING id, user_id, visitor_id, offer_id, submitted, created_at`

	var s models.GoogleFormSubmission
	err := r.db.QueryRow(ctx, update, args...).Scan(&s.ID, &s.UserID, &s.VisitorID, &s.OfferID, &s.Submitted, &s.CreatedAt)
	if err == nil {
		return &s, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	insert := `
		INSERT INTO google_form_submissions (user_id, visitor_id, offer_id, submitted)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, user_id, visitor_id, offer_id, submitted, created_at
	`
	err = r.db.QueryRow(ctx, insert, promoter.UserID, visitorID, offerID).
		Scan(&s.ID, &s.UserID, &s.VisitorID, &s.OfferID, &s.Submitted, &s.CreatedAt)
	if _, dup := uniqueViolation(err); dup {
		// A concurrent request inserted it first.
		return r.MarkSubmitted(ctx, offerID, promoter)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
