package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// ProviderConfig describes one phone-validation provider in the fallback chain.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	// RequestLimit gates live validation calls; FreeLimit gates the batch job
	// and the staff status report. Both are monthly.
	RequestLimit int
	FreeLimit    int
}

// Config holds all application configuration, including secrets, flags, etc.
type Config struct {
	OrganizationName   string
	AppName            string
	Env                string
	AppPort            string
	AppUrl             string
	DBUrl              string
	AutoMigrate        bool
	PostbackAPIKey     string
	TokenSigningSecret []byte
	AuthJWTSecret      []byte

	PhoneProviderChain []string
	NumVerify          ProviderConfig
	Abstract           ProviderConfig
	Twilio             ProviderConfig
	TwilioAuthToken    string

	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	MailFromEmail  string

	PendingVerificationCron string
	APILogRetentionDays     int
	GrabOfferLimitPerIP     int
	GrabOfferWindow         time.Duration

	// Static flags fetched once from LaunchDarkly
	LDFlag_SendgridFromEmail         string
	LDFlag_SendgridSandboxMode       bool
	LDFlag_StrictReferralTransitions bool
	LDFlag_CORSHighSecurity          bool
}

const (
	LDConnectionTimeout  = 5 * time.Second
	DefaultNumVerifyURL  = "https://apilayer.net/api/validate"
	DefaultAbstractURL   = "https://phonevalidation.abstractapi.com/v1/"
	DefaultSMTPPort      = 587
	DefaultProviderChain = constants.ProviderNumVerify + "," + constants.ProviderAbstract
	DefaultMailFromEmail = "no-reply@cashbackzone.in"
)

// Overridable with -ldflags at build time.
var (
	AppName             = constants.AppName
	LDServerContextKey  = constants.AppName
	LDServerContextKind = "service"
)

// LoadConfig reads .env (if present) and the process environment, snapshots the
// LaunchDarkly flags and returns a *Config. Missing required values are fatal.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		utils.Logger.WithError(err).Warn("Failed to read .env file; continuing with process environment")
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	//----------------------------------------------------------------------
	// Required environment variables.
	//----------------------------------------------------------------------
	env := mustEnv("ENV")
	appUrl := strings.TrimRight(mustEnv("APP_URL_FROM_ANYWHERE"), "/")
	appPort := mustEnv("APP_PORT")
	dbUrl := mustEnv("DB_URL")
	postbackKey := mustEnv("POSTBACK_API_KEY")
	signingSecret := mustEnv("TOKEN_SIGNING_SECRET")

	utils.Logger.Debugf("App can be accessed at: %s", appUrl)

	authSecret := envOr("AUTH_JWT_SECRET", signingSecret)

	chain := ParseProviderChain(envOr("PHONE_PROVIDER_CHAIN", DefaultProviderChain))
	if len(chain) == 0 {
		utils.Logger.Fatal("PHONE_PROVIDER_CHAIN names no known provider")
	}

	numVerify := loadProvider(constants.ProviderNumVerify, "NUMVERIFY", "NUMVERIFY_API_KEY", DefaultNumVerifyURL)
	abstract := loadProvider(constants.ProviderAbstract, "ABSTRACT", "ABSTRACT_API_KEY", DefaultAbstractURL)
	twilio := loadProvider(constants.ProviderTwilio, "TWILIO", "TWILIO_ACCOUNT_SID", "")
	twilioAuthToken := os.Getenv("TWILIO_AUTH_TOKEN")

	for _, name := range chain {
		switch name {
		case constants.ProviderNumVerify:
			requireKey(numVerify)
		case constants.ProviderAbstract:
			requireKey(abstract)
		case constants.ProviderTwilio:
			requireKey(twilio)
			if twilioAuthToken == "" {
				utils.Logger.Fatal("TWILIO_AUTH_TOKEN env var is missing but twilio is in PHONE_PROVIDER_CHAIN")
			}
		}
	}

	sendGridAPIKey := os.Getenv("SENDGRID_API_KEY")
	smtpHost := os.Getenv("SMTP_HOST")
	if sendGridAPIKey == "" && smtpHost == "" {
		utils.Logger.Warn("Neither SENDGRID_API_KEY nor SMTP_HOST is set; outgoing email will only be logged")
	}

	//----------------------------------------------------------------------
	// LaunchDarkly. An empty LD_SDK_KEY runs the client offline so every
	// variation returns the env-provided default.
	//----------------------------------------------------------------------
	ldClient, err := newLDClient(os.Getenv("LD_SDK_KEY"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()

	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	sendgridFromEmailFlag, err := ldClient.StringVariation("sendgrid_from_email", context, envOr("MAIL_FROM_EMAIL", DefaultMailFromEmail))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving sendgrid_from_email flag")
	}
	if sendgridFromEmailFlag == "" {
		utils.Logger.Fatal("sendgrid_from_email flag is empty")
	}

	sendgridSandboxModeFlag, err := ldClient.BoolVariation("sendgrid_sandbox_mode", context, envBool("SENDGRID_SANDBOX_MODE", env != "prod"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving sendgrid_sandbox_mode flag")
	}
	utils.Logger.Debugf("sendgrid_sandbox_mode flag: %t", sendgridSandboxModeFlag)

	strictTransitionsFlag, err := ldClient.BoolVariation("strict_referral_transitions", context, envBool("STRICT_REFERRAL_TRANSITIONS", false))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving strict_referral_transitions flag")
	}
	utils.Logger.Debugf("strict_referral_transitions flag: %t", strictTransitionsFlag)

	corsHighSecurity, err := ldClient.BoolVariation("cors_high_security", context, envBool("CORS_HIGH_SECURITY", env == "prod"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving cors_high_security flag")
	}
	utils.Logger.Debugf("cors_high_security flag: %t", corsHighSecurity)

	//----------------------------------------------------------------------
	// Build and return the configuration object.
	//----------------------------------------------------------------------
	return &Config{
		OrganizationName:   constants.OrganizationName,
		AppName:            AppName,
		Env:                env,
		AppPort:            appPort,
		AppUrl:             appUrl,
		DBUrl:              dbUrl,
		AutoMigrate:        envBool("AUTO_MIGRATE", true),
		PostbackAPIKey:     postbackKey,
		TokenSigningSecret: []byte(signingSecret),
		AuthJWTSecret:      []byte(authSecret),

		PhoneProviderChain: chain,
		NumVerify:          numVerify,
		Abstract:           abstract,
		Twilio:             twilio,
		TwilioAuthToken:    twilioAuthToken,

		SendGridAPIKey: sendGridAPIKey,
		SMTPHost:       smtpHost,
		SMTPPort:       envInt("SMTP_PORT", DefaultSMTPPort),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		MailFromEmail:  sendgridFromEmailFlag,

		PendingVerificationCron: envOr("PENDING_VERIFICATION_CRON", constants.DefaultPendingVerificationCron),
		APILogRetentionDays:     envInt("API_LOG_RETENTION_DAYS", constants.DefaultAPILogRetentionDays),
		GrabOfferLimitPerIP:     envInt("GRAB_OFFER_LIMIT_PER_IP", constants.GrabOfferLimitPerIP),
		GrabOfferWindow:         envDuration("GRAB_OFFER_WINDOW", constants.GrabOfferWindow),

		LDFlag_SendgridFromEmail:         sendgridFromEmailFlag,
		LDFlag_SendgridSandboxMode:       sendgridSandboxModeFlag,
		LDFlag_StrictReferralTransitions: strictTransitionsFlag,
		LDFlag_CORSHighSecurity:          corsHighSecurity,
	}
}

// Close cleans up any resources used by Config.
func (c *Config) Close() {
}

// Providers returns the provider configs in fallback order.
func (c *Config) Providers() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.PhoneProviderChain))
	for _, name := range c.PhoneProviderChain {
		switch name {
		case constants.ProviderNumVerify:
			out = append(out, c.NumVerify)
		case constants.ProviderAbstract:
			out = append(out, c.Abstract)
		case constants.ProviderTwilio:
			out = append(out, c.Twilio)
		}
	}
	return out
}

// ParseProviderChain splits a comma list, dropping unknown and repeated names.
func ParseProviderChain(raw string) []string {
	known := map[string]bool{
		constants.ProviderNumVerify: true,
		constants.ProviderAbstract:  true,
		constants.ProviderTwilio:    true,
	}
	seen := map[string]bool{}
	var chain []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if !known[name] {
			if name != "" {
				utils.Logger.Warnf("Ignoring unknown phone provider %q", name)
			}
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}

func newLDClient(sdkKey string) (*ld.LDClient, error) {
	if sdkKey == "" {
		utils.Logger.Info("LD_SDK_KEY not set; LaunchDarkly running offline with env defaults")
		return ld.MakeCustomClient("", ld.Config{Offline: true}, 0)
	}
	client, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		return nil, err
	}
	if !client.Initialized() {
		client.Close()
		return nil, fmt.Errorf("launchdarkly client failed to initialize")
	}
	return client, nil
}

func loadProvider(name, envPrefix, keyVar, defaultURL string) ProviderConfig {
	return ProviderConfig{
		Name:         name,
		APIKey:       os.Getenv(keyVar),
		BaseURL:      envOr(envPrefix+"_BASE_URL", defaultURL),
		RequestLimit: envInt(envPrefix+"_REQUEST_LIMIT", constants.DefaultProviderRequestLimit),
		FreeLimit:    envInt(envPrefix+"_FREE_LIMIT", constants.DefaultProviderFreeLimit),
	}
}

func requireKey(p ProviderConfig) {
	if p.APIKey == "" {
		utils.Logger.Fatalf("API key for provider %s is missing but it is in PHONE_PROVIDER_CHAIN", p.Name)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		utils.Logger.Fatalf("%s env var is missing", key)
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		utils.Logger.Warnf("Invalid %s '%s', defaulting to %d", key, raw, def)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		utils.Logger.Warnf("Invalid %s '%s', defaulting to %t", key, raw, def)
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		utils.Logger.Warnf("Invalid %s '%s', defaulting to %s", key, raw, def)
		return def
	}
	return d
}
