package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msdeveloper2k/cashback-zone/internal/constants"
	"github.com/msdeveloper2k/cashback-zone/internal/models"
	"github.com/msdeveloper2k/cashback-zone/internal/repositories"
	"github.com/msdeveloper2k/cashback-zone/internal/utils"
)

// EmailCodeChallenge is returned to the client after a code email is sent.
// The client posts Token back together with the code the user typed.
type EmailCodeChallenge struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type EmailVerificationService interface {
	RequestEmailCode(ctx context.Context, email string) (*EmailCodeChallenge, error)
	VerifyEmailCode(token, email, code string) error

	SendVerificationLink(ctx context.Context, profile *models.UserProfile) error
	VerifyEmailLink(ctx context.Context, token string) (uuid.UUID, error)
}

type emailVerificationService struct {
	signer   *tokenSigner
	profiles repositories.ProfileRepository
	mailer   Mailer
	appURL   string
	now      func() time.Time
}

func NewEmailVerificationService(
	secret []byte,
	appURL string,
	profiles repositories.ProfileRepository,
	mailer Mailer,
	now func() time.Time,
) EmailVerificationService {
	if now == nil {
		now = time.Now
	}
	return &emailVerificationService{
		signer:   newTokenSigner(secret, now),
		profiles: profiles,
		mailer:   mailer,
		appURL:   strings.TrimRight(appURL, "/"),
		now:      now,
	}
}

func (s *emailVerificationService) RequestEmailCode(ctx context.Context, email string) (*EmailCodeChallenge, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmailSyntax(email) {
		return nil, utils.ErrInvalidEmail
	}

	code := utils.RandomNumericString(constants.EmailVerificationCodeLen)
	token, exp, err := s.signer.sign(purposeEmailCode, "", email, code, constants.EmailCodeTokenExpiry)
	if err != nil {
		return nil, err
	}

	plain := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(constants.EmailCodeTokenExpiry.Minutes()))
	html := fmt.Sprintf(codeEmailHTML,
		"Verify your email",
		"Use the code below to finish creating your account.",
		code,
		s.now().Year(),
	)
	if err := s.mailer.Send(ctx, email, constants.EmailSubjectEmailCode, plain, html); err != nil {
		return nil, err
	}

	utils.Logger.WithField("email", email).Info("Email verification code sent")
	return &EmailCodeChallenge{Token: token, ExpiresAt: exp}, nil
}

func (s *emailVerificationService) VerifyEmailCode(token, email, code string) error {
	claims, err := s.signer.parse(purposeEmailCode, token)
	if err != nil {
		return err
	}
	if !strings.EqualFold(claims.Email, strings.TrimSpace(email)) {
		return fmt.Errorf("%w: email does not match code", utils.ErrInvalidToken)
	}
	if !s.signer.matches(claims, strings.TrimSpace(code)) {
		return fmt.Errorf("%w: incorrect code", utils.ErrInvalidToken)
	}
	return nil
}

// SendVerificationLink emails a signed link that marks the address verified.
// Already-verified profiles are a no-op, which also covers resends.
func (s *emailVerificationService) SendVerificationLink(ctx context.Context, profile *models.UserProfile) error {
	if profile.EmailVerified {
		return nil
	}
	if !utils.IsValidEmailSyntax(profile.Email) {
		return utils.ErrInvalidEmail
	}

	token, _, err := s.signer.sign(purposeEmailLink, profile.UserID.String(), profile.Email, "", constants.EmailLinkTokenExpiry)
	if err != nil {
		return err
	}
	link := s.appURL + "/verify-email/" + token

	plain := fmt.Sprintf("Confirm your email address by opening %s", link)
	html := fmt.Sprintf(linkEmailHTML,
		"Confirm your email",
		fmt.Sprintf("Hi %s, please confirm your email address to start earning cashback.", profile.Username),
		link,
		"Verify email",
		s.now().Year(),
	)
	if err := s.mailer.Send(ctx, profile.Email, constants.EmailSubjectVerifyEmail, plain, html); err != nil {
		return err
	}
	utils.Logger.WithField("user_id", profile.UserID).Info("Email verification link sent")
	return nil
}

func (s *emailVerificationService) VerifyEmailLink(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.signer.parse(purposeEmailLink, token)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", utils.ErrInvalidToken)
	}

	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if profile == nil {
		return uuid.Nil, utils.ErrNotFound
	}
	// A link for an address the user has since changed is stale.
	if !strings.EqualFold(profile.Email, claims.Email) {
		return uuid.Nil, fmt.Errorf("%w: email changed since link was sent", utils.ErrInvalidToken)
	}
	if profile.EmailVerified {
		return userID, nil
	}
	if err := s.profiles.SetEmailVerified(ctx, userID); err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}
