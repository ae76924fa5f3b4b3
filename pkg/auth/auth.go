// Package auth implements OTP-verified signup, password login with JWTs and
// the OTP-gated password reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/khanpan/pkg/models"
	"github.com/example/khanpan/pkg/notify"
	"go.uber.org/zap"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrAlreadyRegistered  = errors.New("email already registered")
	ErrEmailTaken         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidOTP         = errors.New("invalid or expired otp")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("account not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Service struct {
	users  UserStore
	mailer notify.Mailer
	tokens *TokenIssuer
	otpTTL time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewService(users UserStore, mailer notify.Mailer, tokens *TokenIssuer, otpTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		mailer: mailer,
		tokens: tokens,
		otpTTL: otpTTL,
		now:    time.Now,
		logger: logger,
	}
}

// Signup creates an unverified account, or refreshes the OTP of an existing
// unverified one, and mails the code.
func (s *Service) Signup(ctx context.Context, name, email string) error {
	name, email = strings.TrimSpace(name), normalizeEmail(email)
	if name == "" || email == "" {
		return ErrMissingFields
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user = nil
	case err != nil:
		return fmt.Errorf("failed to find user: %w", err)
	case user.IsVerified:
		return ErrAlreadyRegistered
	}

	otp, err := GenerateOTP()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.otpTTL)

	if user == nil {
		user = &models.User{Name: name, Email: email, CreatedAt: s.now()}
		user.SetOTP(otp, expires)
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	} else {
		user.SetOTP(otp, expires)
		if err := s.users.Save(ctx, user); err != nil {
			return fmt.Errorf("failed to save user: %w", err)
		}
	}

	return s.mailer.Send(ctx, notify.Mail{
		To:      email,
		Subject: "KhanPan Signup OTP",
		Body:    fmt.Sprintf("Your OTP for KhanPan signup is: %s", otp),
	})
}

// VerifyOTP confirms a signup and sets the password. It reports
// alreadyVerified without touching the account when there is nothing to do.
func (s *Service) VerifyOTP(ctx context.Context, email, otp, password string) (alreadyVerified bool, err error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, err
	}
	if user.IsVerified {
		return true, nil
	}
	if !user.OTPValid(otp, s.now()) {
		return false, ErrInvalidOTP
	}
	if password == "" {
		return false, fmt.Errorf("%w: password", ErrMissingFields)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.IsVerified = true
	user.ClearOTP()
	if err := s.users.Save(ctx, user); err != nil {
		return false, fmt.Errorf("failed to save user: %w", err)
	}

	// The account is usable even if the welcome mail is lost.
	if err := s.mailer.Send(ctx, notify.Mail{
		To:      user.Email,
		Subject: "Welcome to KhanPan",
		Body:    fmt.Sprintf("Welcome, %s! Your account is now verified.", user.Name),
	}); err != nil {
		s.logger.Warn("Failed to send welcome mail", zap.String("email", user.Email), zap.Error(err))
	}
	return false, nil
}

// Login checks the password of a verified account and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrNotVerified
	}
	if err != nil {
		return "", nil, err
	}
	if !user.IsVerified {
		return "", nil, ErrNotVerified
	}
	if !CheckPassword(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}

// ForgotPassword issues a reset OTP for an existing account.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	otp, err := GenerateOTP()
	if err != nil {
		return err
	}
	user.SetOTP(otp, s.now().Add(s.otpTTL))
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return s.mailer.Send(ctx, notify.Mail{
		To:      user.Email,
		Subject: "KhanPan Password Reset OTP",
		Body:    fmt.Sprintf("Your OTP for KhanPan password reset is: %s", otp),
	})
}

// VerifyResetOTP checks a reset code without consuming it.
func (s *Service) VerifyResetOTP(ctx context.Context, email, otp string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if !user.OTPValid(otp, s.now()) {
		return ErrInvalidOTP
	}
	return nil
}

// ResetPassword consumes a reset code and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if !user.OTPValid(otp, s.now()) {
		return ErrInvalidOTP
	}
	if newPassword == "" {
		return fmt.Errorf("%w: newPassword", ErrMissingFields)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ClearOTP()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Validate resolves a bearer token to its user.
func (s *Service) Validate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
