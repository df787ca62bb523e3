package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	// Ensure creates the profile on first sight and refreshes username/email
	// from the identity token on later calls.
	Ensure(ctx context.Context, userID uuid.UUID, username, email string) (*models.UserProfile, error)
	SetMobile(ctx context.Context, userID uuid.UUID, number string, verified bool) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
}

type profileRepository struct {
	db DB
}

func NewProfileRepository(db DB) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `
	user_id, username, email, mobile_number, profile_level,
	email_verified, mobile_verified, created_at
`

func (r *profileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID))
}

func (r *profileRepository) Ensure(ctx context.Context, userID uuid.UUID, username, email string) (*models.UserProfile, error) {
	q := `
		INSERT INTO user_profiles (user_id, username, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET username = COALESCE(NULLIF(EXCLUDED.username, ''), user_profiles.username),
		    email = COALESCE(NULLIF(EXCLUDED.email, ''), user_profiles.email)
		RETURNING ` + profileColumns
	return scanProfile(r.db.QueryRow(ctx, q, userID, username, email))
}

func (r *profileRepository) SetMobile(ctx context.Context, userID uuid.UUID, number string, verified bool) error {
	q := `UPDATE user_profiles SET mobile_number = $2, mobile_verified = $3 WHERE user_id = $1`
	tag, err := r.db.Exec(ctx, q, userID, number, verified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}

func (r *profileRepository) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE user_profiles SET email_verified = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var p models.UserProfile
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.Email,
		&p.MobileNumber,
		&p.ProfileLevel,
		&p.EmailVerified,
		&p.MobileVerified,
		&p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
