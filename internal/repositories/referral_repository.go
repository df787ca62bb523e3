package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
)

// ClickUpdate describes the counter/state side of an accepted click.
type ClickUpdate struct {
	Click models.ReferralClick
	// Since is the dedup threshold: an existing ledger row newer than this
	// means the click was already counted.
	Since time.Time
	// NextState is applied only when the current state is in AllowedFrom.
	NextState   models.WorkingState
	AllowedFrom []models.WorkingState
}

type ReferralRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Referral, error)
	GetOrCreate(ctx context.Context, offerID int64, promoter models.Promoter) (*models.Referral, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Referral, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (models.ReferralStats, error)

	// RecordClick inserts (or refreshes) the ledger row and bumps the referral
	// in one transaction. It returns false when a click inside the window
	// already exists, including when a concurrent insert won the race.
	RecordClick(ctx context.Context, upd ClickUpdate) (bool, error)

	UpdateIfVersion(ctx context.Context, ref *models.Referral, expectedVersion int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id int64, mutate func(*models.Referral) error) error
}

type referralRepository struct {
	db DB
	*BaseVersionedRepo[*models.Referral]
}

const referralColumns = `
	id, user_id, visitor_id, offer_id, working_state, click_count,
	row_version, created_at, updated_at
`

func NewReferralRepository(db DB) ReferralRepository {
	r := &referralRepository{db: db}
	r.BaseVersionedRepo = NewBaseRepo[*models.Referral](
		db,
		`SELECT `+referralColumns+` FROM referrals WHERE id = $1::text::bigint`,
		scanReferral,
	)
	return r
}

func (r *referralRepository) GetByID(ctx context.Context, id int64) (*models.Referral, error) {
	return r.BaseVersionedRepo.GetByID(ctx, strconv.FormatInt(id, 10))
}

func (r *referralRepository) GetOrCreate(
	ctx context.Context,
	offerID int64,
	promoter models.Promoter,
) (*models.Referral, error) {
	var visitorID *string
	if promoter.IsAnonymous() {
		if promoter.VisitorID == "" {
			return nil, errors.New("promoter has neither user id nor visitor id")
		}
		visitorID = &promoter.VisitorID
	}

	q := `
		INSERT INTO referrals (user_id, visitor_id, offer_id, working_state, click_count)
		VALUES ($1, $2, $3, 'pending', 0)
		ON CONFLICT DO NOTHING
		RETURNING ` + referralColumns
	ref, err := scanReferral(r.db.QueryRow(ctx, q, promoter.UserID, visitorID, offerID))
	if err != nil || ref != nil {
		return ref, err
	}

	// Lost to an existing row.
	if promoter.UserID != nil {
		q = `SELECT ` + referralColumns + ` FROM referrals WHERE user_id = $1 AND offer_id = $2`
		return scanReferral(r.db.QueryRow(ctx, q, *promoter.UserID, offerID))
	}
	q = `SELECT ` + referralColumns + ` FROM referrals WHERE user_id IS NULL AND visitor_id = $1 AND offer_id = $2`
	return scanReferral(r.db.QueryRow(ctx, q, promoter.VisitorID, offerID))
}

func (r *referralRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Referral, error) {
	q := `SELECT ` + referralColumns + ` FROM referrals WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *referralRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (models.ReferralStats, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE working_state = 'clicked'),
			COUNT(*) FILTER (WHERE working_state = 'converted')
		FROM referrals
		WHERE user_id = $1
	`
	var s models.ReferralStats
	err := r.db.QueryRow(ctx, q, userID).Scan(&s.Total, &s.Clicked, &s.Converted)
	return s, err
}

func (r *referralRepository) RecordClick(ctx context.Context, upd ClickUpdate) (accepted bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil || !accepted {
			_ = tx.Rollback(ctx)
		}
	}()

	// The unique (referral_id, ip_address) constraint serialises concurrent
	// callers; only a row older than the window is refreshed.
	insertQ := `
		INSERT INTO referral_clicks (referral_id, ip_address, session_key, clicked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (referral_id, ip_address) DO UPDATE
		SET clicked_at = EXCLUDED.clicked_at,
		    session_key = EXCLUDED.session_key
		WHERE referral_clicks.clicked_at <= $5
		RETURNING id
	`
	var clickID int64
	err = tx.QueryRow(ctx, insertQ,
		upd.Click.ReferralID,
		upd.Click.IPAddress,
		upd.Click.SessionKey,
		upd.Click.ClickedAt,
		upd.Since,
	).Scan(&clickID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if _, dup := uniqueViolation(err); dup {
			return false, nil
		}
		return false, err
	}

	updateQ := `
		UPDATE referrals
		SET click_count = click_count + 1,
		    working_state = CASE WHEN working_state = ANY($2::text[]) THEN $3 ELSE working_state END,
		    row_version = row_version + 1,
		    updated_at = $4
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateQ,
		upd.Click.ReferralID,
		stateLabels(upd.AllowedFrom),
		string(upd.NextState),
		upd.Click.ClickedAt,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, fmt.Errorf("referral %d vanished while recording click", upd.Click.ReferralID)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *referralRepository) UpdateIfVersion(
	ctx context.Context,
	ref *models.Referral,
	expectedVersion int64,
) (pgconn.CommandTag, error) {
	q := `
		UPDATE referrals
		SET working_state = $1,
		    click_count = $2,
		    updated_at = NOW(),
		    row_version = row_version + 1
		WHERE id = $3 AND row_version = $4
	`
	return r.db.Exec(ctx, q, string(ref.WorkingState), ref.ClickCount, ref.ID, expectedVersion)
}

func (r *referralRepository) UpdateWithRetry(
	ctx context.Context,
	id int64,
	mutate func(*models.Referral) error,
) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, strconv.FormatInt(id, 10), mutate, r.UpdateIfVersion)
}

func scanReferral(row pgx.Row) (*models.Referral, error) {
	var (
		ref   models.Referral
		state string
	)
	err := row.Scan(
		&ref.ID,
		&ref.UserID,
		&ref.VisitorID,
		&ref.OfferID,
		&state,
		&ref.ClickCount,
		&ref.RowVersion,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ref.WorkingState = models.WorkingState(state)
	return &ref, nil
}

func stateLabels(states []models.WorkingState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
