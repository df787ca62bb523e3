package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
)

// ---------------------------------------------------------------------
// Mobile validation cache (write-once memo)
// ---------------------------------------------------------------------

type MobileValidationRepository interface {
	Get(ctx context.Context, number string) (*models.MobileValidation, error)
	Save(ctx context.Context, number string, isValid bool, at time.Time) error
}

type mobileValidationRepository struct {
	db DB
}

func NewMobileValidationRepository(db DB) MobileValidationRepository {
	return &mobileValidationRepository{db: db}
}

func (r *mobileValidationRepository) Get(ctx context.Context, number string) (*models.MobileValidation, error) {
	q := `SELECT mobile_number, is_valid, validated_at FROM mobile_validation_cache WHERE mobile_number = $1`
	var mv models.MobileValidation
	err := r.db.QueryRow(ctx, q, number).Scan(&mv.MobileNumber, &mv.IsValid, &mv.ValidatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mv, nil
}

// Save keeps the first recorded result.
func (r *mobileValidationRepository) Save(ctx context.Context, number string, isValid bool, at time.Time) error {
	q := `
		INSERT INTO mobile_validation_cache (mobile_number, is_valid, validated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (mobile_number) DO NOTHING
	`
	_, err := r.db.Exec(ctx, q, number, isValid, at)
	return err
}

// ---------------------------------------------------------------------
// API usage counters
// ---------------------------------------------------------------------

type APIUsageRepository interface {
	GetOrCreate(ctx context.Context, apiName string, now time.Time) (*models.APIUsage, error)
	Save(ctx context.Context, usage *models.APIUsage) error
	List(ctx context.Context) ([]*models.APIUsage, error)
}

type apiUsageRepository struct {
	db DB
}

func NewAPIUsageRepository(db DB) APIUsageRepository {
	return &apiUsageRepository{db: db}
}

func (r *apiUsageRepository) GetOrCreate(ctx context.Context, apiName string, now time.Time) (*models.APIUsage, error) {
	q := `
		INSERT INTO api_usage (api_name, request_count, last_reset)
		VALUES ($1, 0, $2)
		ON CONFLICT (api_name) DO UPDATE SET api_name = EXCLUDED.api_name
		RETURNING api_name, request_count, last_reset
	`
	var u models.APIUsage
	if err := r.db.QueryRow(ctx, q, apiName, now).Scan(&u.APIName, &u.RequestCount, &u.LastReset); err != nil {
		return nil, err
	}
	return &u, nil
}

// Save writes the in-memory counter back. Read-then-write is a soft limit:
// concurrent requests may over- or under-count slightly.
func (r *apiUsageRepository) Save(ctx context.Context, usage *models.APIUsage) error {
	q := `UPDATE api_usage SET request_count = $2, last_reset = $3 WHERE api_name = $1`
	_, err := r.db.Exec(ctx, q, usage.APIName, usage.RequestCount, usage.LastReset)
	return err
}

func (r *apiUsageRepository) List(ctx context.Context) ([]*models.APIUsage, error) {
	rows, err := r.db.Query(ctx, `SELECT api_name, request_count, last_reset FROM api_usage ORDER BY api_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.APIUsage
	for rows.Next() {
		var u models.APIUsage
		if err := rows.Scan(&u.APIName, &u.RequestCount, &u.LastReset); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------
// Pending verification queue
// ---------------------------------------------------------------------

type PendingVerificationRepository interface {
	// CreateIfNoneOpen inserts a row unless the user already has an
	// unprocessed one. It reports whether a row was created.
	CreateIfNoneOpen(ctx context.Context, userID uuid.UUID, number string, at time.Time) (bool, error)
	GetOpenForUser(ctx context.Context, userID uuid.UUID) (*models.PendingVerification, error)
	ListOpen(ctx context.Context) ([]*models.PendingVerification, error)
	MarkProcessed(ctx context.Context, id int64, at time.Time) error

	// UpdateOpenNumber points the user's open row at a newer number.
	UpdateOpenNumber(ctx context.Context, userID uuid.UUID, number string) error
	// CloseOpenForUser marks the user's open row processed, if any.
	CloseOpenForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type pendingVerificationRepository struct {
	db DB
}

func NewPendingVerificationRepository(db DB) PendingVerificationRepository {
	return &pendingVerificationRepository{db: db}
}

const pendingColumns = `id, user_id, mobile_number, is_processed, created_at, processed_at`

func (r *pendingVerificationRepository) CreateIfNoneOpen(
	ctx context.Context,
	userID uuid.UUID,
	number string,
	at time.Time,
) (bool, error) {
	// The partial unique index settles concurrent inserts for the same user.
	q := `
		INSERT INTO pending_verifications (user_id, mobile_number, is_processed, created_at)
		SELECT $1, $2, FALSE, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM pending_verifications WHERE user_id = $1 AND NOT is_processed
		)
		ON CONFLICT DO NOTHING
	`
	tag, err := r.db.Exec(ctx, q, userID, number, at)
	if err != nil {
		if _, dup := uniqueViolation(err); dup {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pendingVerificationRepository) GetOpenForUser(ctx context.Context, userID uuid.UUID) (*models.PendingVerification, error) {
	q := `SELECT ` + pendingColumns + ` FROM pending_verifications WHERE user_id = $1 AND NOT is_processed`
	return scanPending(r.db.QueryRow(ctx, q, userID))
}

func (r *pendingVerificationRepository) ListOpen(ctx context.Context) ([]*models.PendingVerification, error) {
	q := `SELECT ` + pendingColumns + ` FROM pending_verifications WHERE NOT is_processed ORDER BY created_at`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PendingVerification
	for rows.Next() {
		pv, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}

func (r *pendingVerificationRepository) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	q := `UPDATE pending_verifications SET is_processed = TRUE, processed_at = $2 WHERE id = $1 AND NOT is_processed`
	_, err := r.db.Exec(ctx, q, id, at)
	return err
}

func (r *pendingVerificationRepository) UpdateOpenNumber(ctx context.Context, userID uuid.UUID, number string) error {
	q := `UPDATE pending_verifications SET mobile_number = $2 WHERE user_id = $1 AND NOT is_processed`
	_, err := r.db.Exec(ctx, q, userID, number)
	return err
}

func (r *pendingVerificationRepository) CloseOpenForUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	q := `UPDATE pending_verifications SET is_processed = TRUE, processed_at = $2 WHERE user_id = $1 AND NOT is_processed`
	_, err := r.db.Exec(ctx, q, userID, at)
	return err
}

func scanPending(row pgx.Row) (*models.PendingVerification, error) {
	var (
		pv          models.PendingVerification
		processedAt pgtype.Timestamptz
	)
	err := row.Scan(&pv.ID, &pv.UserID, &pv.MobileNumber, &pv.IsProcessed, &pv.CreatedAt, &processedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if processedAt.Status == pgtype.Present {
		t := processedAt.Time
		pv.ProcessedAt = &t
	}
	return &pv, nil
}

// ---------------------------------------------------------------------
// API logs
// ---------------------------------------------------------------------

type APILogRepository interface {
	Create(ctx context.Context, entry *models.APILog) error
	ListRecent(ctx context.Context, limit int) ([]*models.APILog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type apiLogRepository struct {
	db DB
}

func NewAPILogRepository(db DB) APILogRepository {
	return &apiLogRepository{db: db}
}

func (r *apiLogRepository) Create(ctx context.Context, entry *models.APILog) error {
	q := `
		INSERT INTO api_logs (api_name, message, level, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	return r.db.QueryRow(ctx, q, entry.APIName, entry.Message, entry.Level, entry.CreatedAt).Scan(&entry.ID)
}

func (r *apiLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.APILog, error) {
	q := `SELECT id, api_name, message, level, created_at FROM api_logs ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.APILog
	for rows.Next() {
		var l models.APILog
		if err := rows.Scan(&l.ID, &l.APIName, &l.Message, &l.Level, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *apiLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM api_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
