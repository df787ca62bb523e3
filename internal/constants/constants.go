package constants

import "time"

const (
	AppName          = "cashback-zone"
	OrganizationName = "Cashback Zone"
)

// Referral attribution
const (
	ClickDedupWindow      = 24 * time.Hour
	DefaultQueryParamBase = "aff_sub"
	ReferralPathPrefix    = "/r/"
)

// Phone validation providers. Names double as api_usage.api_name keys.
const (
	ProviderNumVerify = "numverify"
	ProviderAbstract  = "abstract"
	ProviderTwilio    = "twilio"

	ProviderTimeout = 5 * time.Second

	DefaultProviderRequestLimit = 100
	DefaultProviderFreeLimit    = 250
)

// Validation reasons and the messages shown to users.
const (
	MsgMobileValid            = "Valid mobile number"
	MsgMobileInvalid          = "Invalid mobile number"
	MsgPendingAPILimits       = "Verification pending due to API limits"
	MsgPendingAPIFailure      = "Verification pending due to API failure"
	MsgEmailAlreadyInUse      = "This email is already in use"
	MsgMobileAlreadyInUse     = "This mobile number is already in use"
	MsgInvalidMobileFormat    = "Enter a valid mobile number with country code (e.g. +919876543210)"
	MsgCaptchaFailed          = "CAPTCHA verification failed. Please try again."
	MsgVerificationNotPending = "No pending mobile verification to retry"
)

// ApiLog levels.
const (
	LogLevelInfo    = "INFO"
	LogLevelWarning = "WARNING"
	LogLevelError   = "ERROR"
)

// grab_offer throttling
const (
	GrabOfferLimitPerIP = 100
	GrabOfferWindow     = 5 * time.Minute
)

// Tokens
const (
	TokenIssuer              = "cashback-zone"
	CaptchaTokenExpiry       = 10 * time.Minute
	EmailCodeTokenExpiry     = 10 * time.Minute
	EmailLinkTokenExpiry     = 72 * time.Hour
	EmailVerificationCodeLen = 6
	VisitorCookieName        = "cz_visitor"
	VisitorCookieMaxAge      = 365 * 24 * time.Hour
)

// Scheduled jobs
const (
	DefaultPendingVerificationCron = "*/30 * * * *"
	RateLimitCleanupCron           = "10 3 * * *"
	APILogRetentionCron            = "20 3 * * *"
	DefaultAPILogRetentionDays     = 30
	DashboardRecentLogCount        = 10

	PendingVerificationJobTimeout = 10 * time.Minute
	MaintenanceJobTimeout         = 2 * time.Minute

	// CloseRejectedPendingVerifications makes the batch close rows whose number
	// a provider rejected. When false they stay open like unanswered rows.
	CloseRejectedPendingVerifications = true
)

// CORS
const (
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:3000"
	ShutdownTimeout                       = 15 * time.Second
)

// Email subjects
const (
	EmailSubjectMobilePending   = "Mobile Number Verification Pending"
	EmailSubjectMobileAvailable = "Mobile Number Verification Available"
	EmailSubjectEmailCode       = "Your Cashback Zone verification code"
	EmailSubjectVerifyEmail     = "Verify your email address"
)

// CaptchaOptions are the image labels a visitor picks from.
var CaptchaOptions = []string{"cat", "dog", "car", "tree", "house", "bird"}
