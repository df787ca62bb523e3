package repositories

import (
	"context"

	"github.com/jackc/pgx/v4"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
)

type OfferRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Offer, error)
	ListActive(ctx context.Context) ([]*models.Offer, error)
	ListBanners(ctx context.Context, offerID int64) ([]*models.AdBanner, error)
	ListTutorialVideos(ctx context.Context, offerID int64) ([]*models.TutorialVideo, error)
}

type offerRepository struct {
	db DB
}

func NewOfferRepository(db DB) OfferRepository {
	return &offerRepository{db: db}
}

const offerSelect = `
	SELECT o.id, o.name, o.description, o.price, o.link, o.terms, o.theme, o.status,
	       o.requires_google_form, o.google_form_url, o.requires_contact_info, o.created_at,
	       a.id, a.name, a.base_url, a.query_param_prefix
	FROM offers o
	LEFT JOIN advertisers a ON a.id = o.advertiser_id
`

func (r *offerRepository) GetByID(ctx context.Context, id int64) (*models.Offer, error) {
	return scanOffer(r.db.QueryRow(ctx, offerSelect+` WHERE o.id = $1`, id))
}

func (r *offerRepository) ListActive(ctx context.Context) ([]*models.Offer, error) {
	rows, err := r.db.Query(ctx, offerSelect+` WHERE o.status = 'active' ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *offerRepository) ListBanners(ctx context.Context, offerID int64) ([]*models.AdBanner, error) {
	q := `SELECT id, offer_id, image_url, position FROM ad_banners WHERE offer_id = $1 ORDER BY position, id`
	rows, err := r.db.Query(ctx, q, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AdBanner
	for rows.Next() {
		var b models.AdBanner
		if err := rows.Scan(&b.ID, &b.OfferID, &b.ImageURL, &b.Position); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (r *offerRepository) ListTutorialVideos(ctx context.Context, offerID int64) ([]*models.TutorialVideo, error) {
	q := `SELECT id, offer_id, title, video_url FROM tutorial_videos WHERE offer_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, q, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TutorialVideo
	for rows.Next() {
		var v models.TutorialVideo
		if err := rows.Scan(&v.ID, &v.OfferID, &v.Title, &v.VideoURL); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var (
		o          models.Offer
		status     string
		advID      *int64
		advName    *string
		advBaseURL *string
		advPrefix  *string
	)
	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Description,
		&o.Price,
		&o.Link,
		&o.Terms,
		&o.Theme,
		&status,
		&o.RequiresGoogleForm,
		&o.GoogleFormURL,
		&o.RequiresContactInfo,
		&o.CreatedAt,
		&advID,
		&advName,
		&advBaseURL,
		&advPrefix,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = models.OfferStatus(status)
	if advID != nil {
		o.Advertiser = &models.Advertiser{
			ID:               *advID,
			Name:             *advName,
			BaseURL:          *advBaseURL,
			QueryParamPrefix: *advPrefix,
		}
	}
	return &o, nil
}
