package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

type userFixture struct {
	users   *fakeUserRepo
	tickets *fakeTicketRepo
	resets  *fakeResetRepo
	mailer  *recordingMailer
	service *UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	users := newFakeUserRepo()
	tickets := newFakeTicketRepo()
	resets := newFakeResetRepo()
	mailer := &recordingMailer{}

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			PasswordResetTTLHours: 24,
			BcryptCost:            4,
		},
	}
	svc := NewUserService(cfg, UserDependencies{
		UserRepo:          users,
		TicketRepo:        tickets,
		PasswordResetRepo: resets,
		Mailer:            mailer,
		Logger:            zap.NewNop(),
	})
	return &userFixture{users: users, tickets: tickets, resets: resets, mailer: mailer, service: svc}
}

func TestRegister(t *testing.T) {
	t.Run("Should create an account with the default USER role", func(t *testing.T) {
		f := newUserFixture(t)
		user, token, expiresAt, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)
		assert.Equal(t, []domain.Role{domain.RoleUser}, user.Roles)
		assert.NotEmpty(t, token)
		assert.True(t, expiresAt.After(time.Now()))
		assert.NotEqual(t, "hunter2secret", user.PasswordHash)
	})

	t.Run("Should reject a duplicate email", func(t *testing.T) {
		f := newUserFixture(t)
		_, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)

		_, _, _, err = f.service.Register(context.Background(), "alice@x.com", "anotherpass", nil)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	})
}

func TestLogin(t *testing.T) {
	setup := func(t *testing.T) *userFixture {
		f := newUserFixture(t)
		_, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)
		return f
	}

	t.Run("Should return a token for valid credentials", func(t *testing.T) {
		f := setup(t)
		user, token, _, err := f.service.Login(context.Background(), "alice@x.com", "hunter2secret")
		require.NoError(t, err)
		assert.Equal(t, "alice@x.com", user.Email)
		assert.NotEmpty(t, token)
	})

	t.Run("Should reject a wrong password", func(t *testing.T) {
		f := setup(t)
		_, _, _, err := f.service.Login(context.Background(), "alice@x.com", "wrong")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthentication))
	})

	t.Run("Should reject an unknown email with the same error", func(t *testing.T) {
		f := setup(t)
		_, _, _, err := f.service.Login(context.Background(), "ghost@x.com", "hunter2secret")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthentication))
	})
}

func TestUpdateRoles(t *testing.T) {
	setup := func(t *testing.T) (*userFixture, *domain.User) {
		f := newUserFixture(t)
		user, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)
		return f, user
	}

	t.Run("Should replace the role set", func(t *testing.T) {
		f, user := setup(t)
		updated, err := f.service.UpdateRoles(context.Background(), user.ID, []string{"USER", "AGENT"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.Role{domain.RoleUser, domain.RoleAgent}, updated.Roles)
	})

	t.Run("Should skip unknown literals", func(t *testing.T) {
		f, user := setup(t)
		updated, err := f.service.UpdateRoles(context.Background(), user.ID, []string{"ADMIN", "SUPERVISOR"})
		require.NoError(t, err)
		assert.Equal(t, []domain.Role{domain.RoleAdmin}, updated.Roles)
	})

	t.Run("Should reject a role set with no valid entries", func(t *testing.T) {
		f, user := setup(t)
		_, err := f.service.UpdateRoles(context.Background(), user.ID, []string{"SUPERVISOR"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("Should fail for missing user", func(t *testing.T) {
		f, _ := setup(t)
		_, err := f.service.UpdateRoles(context.Background(), 99, []string{"AGENT"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUserNotFound))
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Should remove the account", func(t *testing.T) {
		f := newUserFixture(t)
		user, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)

		require.NoError(t, f.service.DeleteUser(context.Background(), user.ID))
		_, getErr := f.users.GetByID(context.Background(), user.ID)
		require.Error(t, getErr)
	})

	t.Run("Should fail for missing user", func(t *testing.T) {
		f := newUserFixture(t)
		err := f.service.DeleteUser(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUserNotFound))
	})
}

func TestAgentWorkloads(t *testing.T) {
	t.Run("Should rank agents least busy first", func(t *testing.T) {
		f := newUserFixture(t)
		owner := &domain.User{Email: "alice@x.com", PasswordHash: "x", Roles: []domain.Role{domain.RoleUser}}
		require.NoError(t, f.users.Create(context.Background(), owner))
		busy := &domain.User{Email: "busy@x.com", PasswordHash: "x", Roles: []domain.Role{domain.RoleAgent}}
		require.NoError(t, f.users.Create(context.Background(), busy))
		idle := &domain.User{Email: "idle@x.com", PasswordHash: "x", Roles: []domain.Role{domain.RoleAgent}}
		require.NoError(t, f.users.Create(context.Background(), idle))

		for i := 0; i < 2; i++ {
			ticket := &domain.Ticket{
				Subject:    "Ticket",
				Status:     domain.StatusOpen,
				OwnerID:    owner.ID,
				AssigneeID: &busy.ID,
				CreatedAt:  time.Now(),
			}
			require.NoError(t, f.tickets.Create(context.Background(), ticket))
		}

		workloads, err := f.service.AgentWorkloads(context.Background())
		require.NoError(t, err)
		require.Len(t, workloads, 2)
		assert.Equal(t, "idle@x.com", workloads[0].Email)
		assert.Equal(t, 0, workloads[0].ActiveTickets)
		assert.Equal(t, "busy@x.com", workloads[1].Email)
		assert.Equal(t, 2, workloads[1].ActiveTickets)
	})

	t.Run("Should exclude users without the AGENT role", func(t *testing.T) {
		f := newUserFixture(t)
		_, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)

		workloads, err := f.service.AgentWorkloads(context.Background())
		require.NoError(t, err)
		assert.Empty(t, workloads)
	})
}

func TestRequestPasswordReset(t *testing.T) {
	t.Run("Should store a token and email it", func(t *testing.T) {
		f := newUserFixture(t)
		_, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)

		require.NoError(t, f.service.RequestPasswordReset(context.Background(), "alice@x.com"))

		messages := f.mailer.messages()
		require.Len(t, messages, 1)
		assert.Equal(t, "alice@x.com", messages[0].To)
		assert.Equal(t, "Password Reset Request", messages[0].Subject)
		assert.Contains(t, messages[0].Body, "token")
	})

	t.Run("Should fail for unknown email", func(t *testing.T) {
		f := newUserFixture(t)
		err := f.service.RequestPasswordReset(context.Background(), "ghost@x.com")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeUserNotFound))
	})
}

func TestResetPassword(t *testing.T) {
	setup := func(t *testing.T) (*userFixture, string) {
		f := newUserFixture(t)
		_, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)
		require.NoError(t, f.service.RequestPasswordReset(context.Background(), "alice@x.com"))

		messages := f.mailer.messages()
		require.Len(t, messages, 1)
		parts := strings.Fields(messages[0].Body)
		return f, parts[len(parts)-1]
	}

	t.Run("Should update the password for a valid token", func(t *testing.T) {
		f, token := setup(t)
		require.NoError(t, f.service.ResetPassword(context.Background(), token, "newpassword1"))

		_, _, _, err := f.service.Login(context.Background(), "alice@x.com", "newpassword1")
		require.NoError(t, err)
		_, _, _, err = f.service.Login(context.Background(), "alice@x.com", "hunter2secret")
		require.Error(t, err)
	})

	t.Run("Should record redemption but keep the token valid until expiry", func(t *testing.T) {
		f, token := setup(t)
		require.NoError(t, f.service.ResetPassword(context.Background(), token, "newpassword1"))

		stored, err := f.resets.GetByToken(context.Background(), token)
		require.NoError(t, err)
		assert.NotNil(t, stored.UsedAt)

		require.NoError(t, f.service.ResetPassword(context.Background(), token, "newpassword2"))
		_, _, _, err = f.service.Login(context.Background(), "alice@x.com", "newpassword2")
		require.NoError(t, err)
	})

	t.Run("Should reject an unknown token", func(t *testing.T) {
		f, _ := setup(t)
		err := f.service.ResetPassword(context.Background(), "nope", "newpassword1")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("Should reject an expired token", func(t *testing.T) {
		f := newUserFixture(t)
		user, _, _, err := f.service.Register(context.Background(), "alice@x.com", "hunter2secret", nil)
		require.NoError(t, err)

		expired := &repository.PasswordResetToken{
			UserID:    user.ID,
			Token:     "stale-token",
			ExpiresAt: time.Now().Add(-time.Hour),
		}
		require.NoError(t, f.resets.Create(context.Background(), expired))

		resetErr := f.service.ResetPassword(context.Background(), "stale-token", "newpassword1")
		require.Error(t, resetErr)
		assert.True(t, apperrors.HasCode(resetErr, apperrors.CodeValidation))
	})
}
