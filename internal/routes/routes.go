package routes

const (
	// Health
	Health  = "/health"
	Metrics = "/metrics"

	// Referral landing and advertiser callback
	ReferralLanding = "/r/{referral_id}"
	Postback        = "/postback"
	VerifyEmailLink = "/verify-email/{token}"

	// Offers
	OffersList        = "/api/v1/offers"
	OfferDetail       = "/api/v1/offers/{offer_id}"
	OfferGrab         = "/api/v1/offers/{offer_id}/grab"
	OfferGoogleFormOK = "/api/v1/offers/{offer_id}/google-form/confirm"

	// Profile and verification
	Dashboard          = "/api/v1/dashboard"
	ProfileMobile      = "/api/v1/profile/mobile"
	ProfileMobileRetry = "/api/v1/profile/mobile/retry"
	EmailCodeRequest   = "/api/v1/email/code"
	EmailCodeVerify    = "/api/v1/email/code/verify"
	EmailLinkResend    = "/api/v1/email/verification/resend"

	// Staff
	AdminProviderStatus = "/api/v1/admin/providers"
	AdminProcessPending = "/api/v1/admin/pending-verifications/process"
)
