// Package testhelpers holds in-memory repository fakes and test doubles for
// unit tests, plus the HTTP helper used by the integration suite.
package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// ----------------------------------------------------------------------
// Referrals
// ----------------------------------------------------------------------

type clickKey struct {
	referralID int64
	ip         string
}

type ReferralRepo struct {
	mu        sync.Mutex
	nextID    int64
	referrals map[int64]*models.Referral
	clicks    map[clickKey]models.ReferralClick
}

var _ repositories.ReferralRepository = (*ReferralRepo)(nil)

func NewReferralRepo() *ReferralRepo {
	return &ReferralRepo{
		referrals: make(map[int64]*models.Referral),
		clicks:    make(map[clickKey]models.ReferralClick),
	}
}

// Seed stores ref as-is, assigning an id when it has none.
func (r *ReferralRepo) Seed(ref models.Referral) *models.Referral {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ref.ID == 0 {
		r.nextID++
		ref.ID = r.nextID
	} else if ref.ID > r.nextID {
		r.nextID = ref.ID
	}
	if ref.WorkingState == "" {
		ref.WorkingState = models.WorkingStatePending
	}
	if ref.RowVersion == 0 {
		ref.RowVersion = 1
	}
	r.referrals[ref.ID] = &ref
	cp := ref
	return &cp
}

// ClickCountFor returns how many ledger rows exist for a referral.
func (r *ReferralRepo) ClickCountFor(referralID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.clicks {
		if k.referralID == referralID {
			n++
		}
	}
	return n
}

func (r *ReferralRepo) GetByID(_ context.Context, id int64) (*models.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.referrals[id]
	if !ok {
		return nil, nil
	}
	cp := *ref
	return &cp, nil
}

func (r *ReferralRepo) GetOrCreate(_ context.Context, offerID int64, promoter models.Promoter) (*models.Referral, error) {
	if promoter.IsAnonymous() && promoter.VisitorID == "" {
		return nil, errors.New("promoter has neither user id nor visitor id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range r.referrals {
		if ref.OfferID != offerID {
			continue
		}
		if promoter.UserID != nil && ref.UserID != nil && *ref.UserID == *promoter.UserID {
			cp := *ref
			return &cp, nil
		}
		if promoter.UserID == nil && ref.UserID == nil && ref.VisitorID != nil && *ref.VisitorID == promoter.VisitorID {
			cp := *ref
			return &cp, nil
		}
	}

	r.nextID++
	ref := &models.Referral{
		ID:           r.nextID,
		OfferID:      offerID,
		WorkingState: models.WorkingStatePending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	ref.RowVersion = 1
	if promoter.UserID != nil {
		uid := *promoter.UserID
		ref.UserID = &uid
	} else {
		vid := promoter.VisitorID
		ref.VisitorID = &vid
	}
	r.referrals[ref.ID] = ref
	cp := *ref
	return &cp, nil
}

func (r *ReferralRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Referral, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Referral
	for _, ref := range r.referrals {
		if ref.UserID != nil && *ref.UserID == userID {
			cp := *ref
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *ReferralRepo) StatsByUser(ctx context.Context, userID uuid.UUID) (models.ReferralStats, error) {
	refs, _ := r.ListByUser(ctx, userID)
	var s models.ReferralStats
	for _, ref := range refs {
		s.Total++
		switch ref.WorkingState {
		case models.WorkingStateClicked:
			s.Clicked++
		case models.WorkingStateConverted:
			s.Converted++
		}
	}
	return s, nil
}

func (r *ReferralRepo) RecordClick(_ context.Context, upd repositories.ClickUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := r.referrals[upd.Click.ReferralID]
	if !ok {
		return false, fmt.Errorf("referral %d does not exist", upd.Click.ReferralID)
	}

	key := clickKey{referralID: upd.Click.ReferralID, ip: upd.Click.IPAddress}
	if prev, seen := r.clicks[key]; seen && prev.ClickedAt.After(upd.Since) {
		return false, nil
	}
	r.clicks[key] = upd.Click

	ref.ClickCount++
	for _, from := range upd.AllowedFrom {
		if ref.WorkingState == from {
			ref.WorkingState = upd.NextState
			break
		}
	}
	ref.RowVersion++
	ref.UpdatedAt = upd.Click.ClickedAt
	return true, nil
}

func (r *ReferralRepo) UpdateIfVersion(_ context.Context, ref *models.Referral, expectedVersion int64) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.referrals[ref.ID]
	if !ok || cur.RowVersion != expectedVersion {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cur.WorkingState = ref.WorkingState
	cur.ClickCount = ref.ClickCount
	cur.RowVersion++
	cur.UpdatedAt = time.Now()
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (r *ReferralRepo) UpdateWithRetry(ctx context.Context, id int64, mutate func(*models.Referral) error) error {
	getByID := func(ctx context.Context, id string) (*models.Referral, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, err
		}
		return r.GetByID(ctx, n)
	}
	return repositories.WithRetry(ctx, repositories.DefaultUpdateRetries, strconv.FormatInt(id, 10), getByID, r.UpdateIfVersion, mutate)
}

// ----------------------------------------------------------------------
// Offers
// ----------------------------------------------------------------------

type OfferRepo struct {
	mu      sync.Mutex
	offers  map[int64]*models.Offer
	banners map[int64][]*models.AdBanner
	videos  map[int64][]*models.TutorialVideo
}

var _ repositories.OfferRepository = (*OfferRepo)(nil)

func NewOfferRepo() *OfferRepo {
	return &OfferRepo{
		offers:  make(map[int64]*models.Offer),
		banners: make(map[int64][]*models.AdBanner),
		videos:  make(map[int64][]*models.TutorialVideo),
	}
}

func (r *OfferRepo) Add(o *models.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = o
}

func (r *OfferRepo) AddBanner(b *models.AdBanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banners[b.OfferID] = append(r.banners[b.OfferID], b)
}

func (r *OfferRepo) AddVideo(v *models.TutorialVideo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.OfferID] = append(r.videos[v.OfferID], v)
}

func (r *OfferRepo) GetByID(_ context.Context, id int64) (*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *OfferRepo) ListActive(_ context.Context) ([]*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Offer
	for _, o := range r.offers {
		if o.IsActive() {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *OfferRepo) ListBanners(_ context.Context, offerID int64) ([]*models.AdBanner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AdBanner(nil), r.banners[offerID]...), nil
}

func (r *OfferRepo) ListTutorialVideos(_ context.Context, offerID int64) ([]*models.TutorialVideo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.TutorialVideo(nil), r.videos[offerID]...), nil
}

// ----------------------------------------------------------------------
// Phone validation cache and quotas
// ----------------------------------------------------------------------

type MobileValidationRepo struct {
	mu      sync.Mutex
	entries map[string]models.MobileValidation
}

var _ repositories.MobileValidationRepository = (*MobileValidationRepo)(nil)

func NewMobileValidationRepo() *MobileValidationRepo {
	return &MobileValidationRepo{entries: make(map[string]models.MobileValidation)}
}

func (r *MobileValidationRepo) Get(_ context.Context, number string) (*models.MobileValidation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mv, ok := r.entries[number]
	if !ok {
		return nil, nil
	}
	return &mv, nil
}

func (r *MobileValidationRepo) Save(_ context.Context, number string, isValid bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[number]; ok {
		return nil
	}
	r.entries[number] = models.MobileValidation{MobileNumber: number, IsValid: isValid, ValidatedAt: at}
	return nil
}

func (r *MobileValidationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type APIUsageRepo struct {
	mu    sync.Mutex
	usage map[string]models.APIUsage
}

var _ repositories.APIUsageRepository = (*APIUsageRepo)(nil)

func NewAPIUsageRepo() *APIUsageRepo {
	return &APIUsageRepo{usage: make(map[string]models.APIUsage)}
}

func (r *APIUsageRepo) Set(u models.APIUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[u.APIName] = u
}

func (r *APIUsageRepo) Snapshot(name string) models.APIUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage[name]
}

func (r *APIUsageRepo) GetOrCreate(_ context.Context, apiName string, now time.Time) (*models.APIUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usage[apiName]
	if !ok {
		u = models.APIUsage{APIName: apiName, LastReset: now}
		r.usage[apiName] = u
	}
	return &u, nil
}

func (r *APIUsageRepo) Save(_ context.Context, usage *models.APIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[usage.APIName] = *usage
	return nil
}

func (r *APIUsageRepo) List(_ context.Context) ([]*models.APIUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.APIUsage
	for _, u := range r.usage {
		cp := u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].APIName < out[j].APIName })
	return out, nil
}

// ----------------------------------------------------------------------
// Pending verifications
// ----------------------------------------------------------------------

type PendingVerificationRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.PendingVerification
}

var _ repositories.PendingVerificationRepository = (*PendingVerificationRepo)(nil)

func NewPendingVerificationRepo() *PendingVerificationRepo {
	return &PendingVerificationRepo{}
}

func (r *PendingVerificationRepo) CreateIfNoneOpen(_ context.Context, userID uuid.UUID, number string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.rows {
		if pv.UserID == userID && !pv.IsProcessed {
			return false, nil
		}
	}
	r.nextID++
	r.rows = append(r.rows, &models.PendingVerification{
		ID:           r.nextID,
		UserID:       userID,
		MobileNumber: number,
		CreatedAt:    at,
	})
	return true, nil
}

func (r *PendingVerificationRepo) GetOpenForUser(_ context.Context, userID uuid.UUID) (*models.PendingVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.rows {
		if pv.UserID == userID && !pv.IsProcessed {
			cp := *pv
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *PendingVerificationRepo) ListOpen(_ context.Context) ([]*models.PendingVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PendingVerification
	for _, pv := range r.rows {
		if !pv.IsProcessed {
			cp := *pv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *PendingVerificationRepo) MarkProcessed(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.rows {
		if pv.ID == id && !pv.IsProcessed {
			pv.IsProcessed = true
			t := at
			pv.ProcessedAt = &t
		}
	}
	return nil
}

func (r *PendingVerificationRepo) UpdateOpenNumber(_ context.Context, userID uuid.UUID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.rows {
		if pv.UserID == userID && !pv.IsProcessed {
			pv.MobileNumber = number
		}
	}
	return nil
}

func (r *PendingVerificationRepo) CloseOpenForUser(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.rows {
		if pv.UserID == userID && !pv.IsProcessed {
			pv.IsProcessed = true
			t := at
			pv.ProcessedAt = &t
		}
	}
	return nil
}

// All returns every row, processed or not.
func (r *PendingVerificationRepo) All() []models.PendingVerification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PendingVerification, 0, len(r.rows))
	for _, pv := range r.rows {
		out = append(out, *pv)
	}
	return out
}

// ----------------------------------------------------------------------
// API logs
// ----------------------------------------------------------------------

type APILogRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   []*models.APILog
}

var _ repositories.APILogRepository = (*APILogRepo)(nil)

func NewAPILogRepo() *APILogRepo {
	return &APILogRepo{}
}

func (r *APILogRepo) Create(_ context.Context, l *models.APILog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	cp := *l
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *APILogRepo) ListRecent(_ context.Context, limit int) ([]*models.APILog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.APILog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.logs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *APILogRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		kept    []*models.APILog
		removed int64
	)
	for _, l := range r.logs {
		if l.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return removed, nil
}

func (r *APILogRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

// ----------------------------------------------------------------------
// Profiles
// ----------------------------------------------------------------------

type ProfileRepo struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.UserProfile
}

var _ repositories.ProfileRepository = (*ProfileRepo)(nil)

func NewProfileRepo() *ProfileRepo {
	return &ProfileRepo{profiles: make(map[uuid.UUID]*models.UserProfile)}
}

func (r *ProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *ProfileRepo) Ensure(_ context.Context, userID uuid.UUID, username, email string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		p = &models.UserProfile{UserID: userID, ProfileLevel: 1, CreatedAt: time.Now()}
		r.profiles[userID] = p
	}
	if username != "" {
		p.Username = username
	}
	if email != "" {
		p.Email = email
	}
	cp := *p
	return &cp, nil
}

func (r *ProfileRepo) SetMobile(_ context.Context, userID uuid.UUID, number string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return utils.ErrNoRowsUpdated
	}
	n := number
	p.MobileNumber = &n
	p.MobileVerified = verified
	return nil
}

func (r *ProfileRepo) SetEmailVerified(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return utils.ErrNoRowsUpdated
	}
	p.EmailVerified = true
	return nil
}

// ----------------------------------------------------------------------
// Contact info and google forms
// ----------------------------------------------------------------------

type ContactInfoRepo struct {
	mu    sync.Mutex
	items []*models.ContactInfo
}

var _ repositories.ContactInfoRepository = (*ContactInfoRepo)(nil)

func NewContactInfoRepo() *ContactInfoRepo {
	return &ContactInfoRepo{}
}

func (r *ContactInfoRepo) Create(_ context.Context, ci *models.ContactInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == ci.Email {
			return utils.ErrEmailExists
		}
		if existing.Mobile == ci.Mobile {
			return utils.ErrPhoneExists
		}
	}
	ci.ID = int64(len(r.items) + 1)
	cp := *ci
	r.items = append(r.items, &cp)
	return nil
}

func (r *ContactInfoRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type GoogleFormRepo struct {
	mu    sync.Mutex
	items []*models.GoogleFormSubmission
}

var _ repositories.GoogleFormRepository = (*GoogleFormRepo)(nil)

func NewGoogleFormRepo() *GoogleFormRepo {
	return &GoogleFormRepo{}
}

func (r *GoogleFormRepo) MarkSubmitted(_ context.Context, offerID int64, promoter models.Promoter) (*models.GoogleFormSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.OfferID != offerID {
			continue
		}
		sameUser := promoter.UserID != nil && s.UserID != nil && *s.UserID == *promoter.UserID
		sameVisitor := promoter.UserID == nil && s.UserID == nil && s.VisitorID != nil && *s.VisitorID == promoter.VisitorID
		if sameUser || sameVisitor {
			s.Submitted = true
			cp := *s
			return &cp, nil
		}
	}
	s := &models.GoogleFormSubmission{
		ID:        int64(len(r.items) + 1),
		OfferID:   offerID,
		UserID:    promoter.UserID,
		Submitted: true,
		CreatedAt: time.Now(),
	}
	if promoter.UserID == nil {
		vid := promoter.VisitorID
		s.VisitorID = &vid
	}
	r.items = append(r.items, s)
	cp := *s
	return &cp, nil
}

func (r *GoogleFormRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// ----------------------------------------------------------------------
// Rate limits
// ----------------------------------------------------------------------

type RateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

var _ repositories.RateLimitRepository = (*RateLimitRepo)(nil)

func NewRateLimitRepo() *RateLimitRepo {
	return &RateLimitRepo{counts: make(map[string]int)}
}

func (r *RateLimitRepo) IncrementAndCheck(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key] <= limit, nil
}

func (r *RateLimitRepo) CleanupExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.counts))
	r.counts = make(map[string]int)
	return n, nil
}
