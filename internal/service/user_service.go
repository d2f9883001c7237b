package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService coordinates accounts: registration, login, role management
// and the password-reset flow.
type UserService struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	resets     repository.PasswordResetRepository
	tokenMgr   *auth.TokenManager
	mailer     notify.Mailer
	limiter    *redis.Client
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	cooldown   time.Duration
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo          repository.UserRepository
	TicketRepo        repository.TicketRepository
	PasswordResetRepo repository.PasswordResetRepository
	Mailer            notify.Mailer
	RateLimiter       *redis.Client
	Logger            *zap.Logger
}

// AgentWorkload pairs an agent with the count of tickets currently on
// their plate, for least-busy-first assignment picking.
type AgentWorkload struct {
	ID            int64   `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	ActiveTickets int     `json:"active_tickets"`
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		tickets:    deps.TicketRepo,
		resets:     deps.PasswordResetRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		mailer:     deps.Mailer,
		limiter:    deps.RateLimiter,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   cfg.Auth.PasswordResetTTL(),
		cooldown:   cfg.Auth.ResetCooldown(),
	}
}

// TokenManager exposes the JWT manager for middleware wiring.
func (s *UserService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a new account with the default USER role.
func (s *UserService) Register(ctx context.Context, email, password string, name *string) (*domain.User, string, time.Time, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Roles:        []domain.Role{domain.RoleUser},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}

	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// Login authenticates by email and password.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewAuthenticationRequired("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewAuthenticationRequired("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// ListUsers returns every account. Admin surface.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdateRoles replaces a user's role set. Unknown literals are skipped,
// matching the permissive handling the admin surface always had, but a
// resulting empty set is rejected: every user keeps at least one role.
func (s *UserService) UpdateRoles(ctx context.Context, id int64, roles []string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	parsed := make([]domain.Role, 0, len(roles))
	for _, literal := range roles {
		role, err := domain.ParseRole(literal)
		if err != nil {
			continue
		}
		if !containsRole(parsed, role) {
			parsed = append(parsed, role)
		}
	}
	if len(parsed) == 0 {
		return nil, apperrors.NewValidationError("at least one valid role required", map[string]any{"roles": roles})
	}

	user.Roles = parsed
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// DeleteUser removes an account. Admin surface.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUserNotFound(map[string]any{"user_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// AgentWorkloads lists users holding the AGENT role together with their
// active ticket counts, least busy first.
func (s *UserService) AgentWorkloads(ctx context.Context) ([]AgentWorkload, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	workloads := make([]AgentWorkload, 0, len(users))
	for i := range users {
		if !users[i].HasRole(domain.RoleAgent) {
			continue
		}
		count, err := s.tickets.CountActiveByAssignee(ctx, users[i].ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		workloads = append(workloads, AgentWorkload{
			ID:            users[i].ID,
			Email:         users[i].Email,
			Name:          users[i].Name,
			ActiveTickets: count,
		})
	}
	sort.SliceStable(workloads, func(i, j int) bool {
		if workloads[i].ActiveTickets != workloads[j].ActiveTickets {
			return workloads[i].ActiveTickets < workloads[j].ActiveTickets
		}
		return workloads[i].ID < workloads[j].ID
	})
	return workloads, nil
}

// RequestPasswordReset issues a reset token and emails it to the user.
// Requests inside the cooldown window are dropped without error so the
// endpoint cannot be used to hammer a mailbox.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUserNotFound(map[string]any{"email": email})
		}
		return apperrors.MapError(err)
	}

	if !s.reserveResetSlot(ctx, email) {
		s.logger.Debug("password reset request inside cooldown", zap.String("email", email))
		return nil
	}

	token := &repository.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return apperrors.MapError(err)
	}

	body := fmt.Sprintf("To reset your password, use this token: %s", token.Token)
	if err := s.mailer.Send(ctx, user.Email, "Password Reset Request", body); err != nil {
		s.logger.Warn("password reset mail failed", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password. The token
// is stamped used for auditing but stays redeemable until expiry.
func (s *UserService) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("invalid or expired token", nil)
		}
		return apperrors.MapError(err)
	}
	if token.ExpiresAt.Before(time.Now()) {
		return apperrors.NewValidationError("invalid or expired token", nil)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUserNotFound(map[string]any{"user_id": token.UserID})
		}
		return apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	if err := s.resets.MarkUsed(ctx, token.ID); err != nil {
		s.logger.Warn("failed to mark reset token used", zap.Int64("token_id", token.ID), zap.Error(err))
	}
	return nil
}

// reserveResetSlot rate-limits reset requests per email via redis SetNX.
// Redis being down fails open: the request proceeds.
func (s *UserService) reserveResetSlot(ctx context.Context, email string) bool {
	if s.limiter == nil || s.cooldown <= 0 {
		return true
	}
	ok, err := s.limiter.SetNX(ctx, "pwreset:"+email, 1, s.cooldown).Result()
	if err != nil {
		s.logger.Warn("reset rate limiter unavailable", zap.Error(err))
		return true
	}
	return ok
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
