package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/flightapp/flight-auth/internal/auth"
	"github.com/flightapp/flight-auth/internal/config"
	"github.com/flightapp/flight-auth/internal/domain"
	"github.com/flightapp/flight-auth/internal/events"
	"github.com/flightapp/flight-auth/internal/repository"
	"github.com/flightapp/flight-auth/internal/repository/repofake"
	"github.com/flightapp/flight-auth/internal/service"
)

const testSecret = "mySecretKeyForJWTTokenGenerationAndValidationMustBeLongEnough1234567890"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testFixture holds all test dependencies
type testFixture struct {
	repo     *repofake.FakeUserRepo
	service  *service.AuthService
	clock    *testClock
	recorded []events.Event
}

func setupTestFixture(t *testing.T, repo repository.UserRepository) *testFixture {
	t.Helper()

	f := &testFixture{clock: &testClock{now: time.Unix(1_700_000_000, 0)}}
	if repo == nil {
		f.repo = repofake.NewFakeUserRepo()
		repo = f.repo
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventUserRegistered,
		events.EventRegistrationRejected,
		events.EventTokenRejected,
	} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.recorded = append(f.recorded, e)
			return nil
		})
	}

	svc, err := service.NewAuthService(config.AuthConfig{
		JWTSecret:  testSecret,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	}, service.AuthDependencies{
		UserRepo:   repo,
		Dispatcher: dispatcher,
	}, auth.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *testFixture) register(t *testing.T, username, email string) *domain.AuthOutcome {
	t.Helper()
	out, err := f.service.Register(context.Background(), service.RegisterInput{
		Username:  username,
		Password:  "password123",
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return out
}

func (f *testFixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.recorded))
	for _, e := range f.recorded {
		out = append(out, e.Type)
	}
	return out
}

func TestNewAuthServiceRejectsWeakSecret(t *testing.T) {
	_, err := service.NewAuthService(config.AuthConfig{JWTSecret: "short", TokenTTL: time.Hour}, service.AuthDependencies{
		UserRepo: repofake.NewFakeUserRepo(),
	})
	assert.ErrorIs(t, err, auth.ErrWeakSecret)
}

func TestRegister(t *testing.T) {
	f := setupTestFixture(t, nil)

	out := f.register(t, "alice", "alice@example.com")
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, "alice@example.com", out.Email)
	assert.Equal(t, domain.RoleUser, out.Role)
	assert.Equal(t, domain.MsgRegistrationSuccessful, out.Message)

	stored, err := f.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Enabled)
	assert.Equal(t, domain.RoleUser, stored.Role)
	assert.Equal(t, "Test", stored.FirstName)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))

	claims, err := f.service.Tokens().Decode(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, map[string]any{"email": "alice@example.com", "role": "USER"}, claims.Values)

	assert.Equal(t, []events.EventType{events.EventUserRegistered}, f.eventTypes())
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := setupTestFixture(t, nil)

	out := f.register(t, "alice", "  Alice@Example.COM ")
	require.True(t, out.Success)
	assert.Equal(t, "alice@example.com", out.Email)

	claims, err := f.service.Tokens().Decode(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Values["email"])

	login, err := f.service.Login(context.Background(), service.LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, out.Email, login.Email)

	dup := f.register(t, "bob", "ALICE@example.com")
	assert.Equal(t, domain.MsgEmailExists, dup.Message)
}

func TestRegisterPasswordTooLongForBcrypt(t *testing.T) {
	f := setupTestFixture(t, nil)

	out, err := f.service.Register(context.Background(), service.RegisterInput{
		Username: "alice",
		Password: strings.Repeat("密", 30),
		Email:    "alice@example.com",
	})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Equal(t, 0, f.repo.Count())
}

func TestRegisterDuplicates(t *testing.T) {
	f := setupTestFixture(t, nil)
	require.True(t, f.register(t, "alice", "alice@example.com").Success)

	out := f.register(t, "alice", "other@example.com")
	assert.False(t, out.Success)
	assert.Empty(t, out.Token)
	assert.Equal(t, domain.MsgUsernameExists, out.Message)

	out = f.register(t, "bob", "alice@example.com")
	assert.False(t, out.Success)
	assert.Empty(t, out.Token)
	assert.Equal(t, domain.MsgEmailExists, out.Message)

	// username is checked first when both collide
	out = f.register(t, "alice", "alice@example.com")
	assert.Equal(t, domain.MsgUsernameExists, out.Message)

	assert.Equal(t, 1, f.repo.Count())
}

// racingRepo reports no existing records but loses the insert race.
type racingRepo struct {
	*repofake.FakeUserRepo
	createErr error
}

func (r *racingRepo) ExistsByUsername(context.Context, string) (bool, error) { return false, nil }
func (r *racingRepo) ExistsByEmail(context.Context, string) (bool, error)    { return false, nil }
func (r *racingRepo) Create(context.Context, *domain.Credential) error      { return r.createErr }

func TestRegisterLostRace(t *testing.T) {
	for want, createErr := range map[string]error{
		domain.MsgUsernameExists: repository.ErrDuplicateUsername,
		domain.MsgEmailExists:    repository.ErrDuplicateEmail,
	} {
		f := setupTestFixture(t, &racingRepo{FakeUserRepo: repofake.NewFakeUserRepo(), createErr: createErr})
		out := f.register(t, "alice", "alice@example.com")
		assert.False(t, out.Success)
		assert.Empty(t, out.Token)
		assert.Equal(t, want, out.Message)
	}
}

func TestRegisterStoreFailure(t *testing.T) {
	repo := repofake.NewFakeUserRepo()
	repo.Err = errors.New("connection refused")
	f := setupTestFixture(t, repo)

	out, err := f.service.Register(context.Background(), service.RegisterInput{Username: "alice", Password: "pw", Email: "a@example.com"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, auth.ErrCollaboratorFailure)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.register(t, "alice", "alice@example.com")
	f.register(t, "carol", "carol@example.com")
	f.repo.SetEnabled("carol", false)
	f.recorded = nil

	ctx := context.Background()

	out, err := f.service.Login(ctx, service.LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, domain.MsgLoginSuccessful, out.Message)
	assert.Equal(t, "alice@example.com", out.Email)
	assert.Equal(t, domain.RoleUser, out.Role)

	claims, err := f.service.Tokens().Decode(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	wrongPassword, err := f.service.Login(ctx, service.LoginInput{Username: "alice", Password: "nope"})
	require.NoError(t, err)
	disabled, err := f.service.Login(ctx, service.LoginInput{Username: "carol", Password: "password123"})
	require.NoError(t, err)
	unknown, err := f.service.Login(ctx, service.LoginInput{Username: "mallory", Password: "password123"})
	require.NoError(t, err)

	for _, rejected := range []*domain.AuthOutcome{wrongPassword, disabled, unknown} {
		assert.False(t, rejected.Success)
		assert.Empty(t, rejected.Token)
		assert.Empty(t, rejected.Username)
		assert.Equal(t, domain.MsgInvalidCredentials, rejected.Message)
	}
	assert.Equal(t, *wrongPassword, *disabled)
	assert.Equal(t, *wrongPassword, *unknown)

	assert.Equal(t, []events.EventType{
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventLoginFailed,
		events.EventLoginFailed,
	}, f.eventTypes())
}

func TestLoginStoreFailure(t *testing.T) {
	repo := repofake.NewFakeUserRepo()
	repo.Err = errors.New("timeout")
	f := setupTestFixture(t, repo)

	out, err := f.service.Login(context.Background(), service.LoginInput{Username: "alice", Password: "pw"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, auth.ErrCollaboratorFailure)
}

func TestValidateTokenIdempotentUntilExpiry(t *testing.T) {
	f := setupTestFixture(t, nil)
	token := f.register(t, "alice", "alice@example.com").Token
	ctx := context.Background()

	want := &domain.ValidationOutcome{Valid: true, Username: "alice", Message: domain.MsgTokenValid}
	for i := 0; i < 3; i++ {
		assert.Equal(t, want, f.service.ValidateToken(ctx, token))
		f.clock.Advance(10 * time.Minute)
	}

	f.clock.Advance(time.Hour)
	expired := &domain.ValidationOutcome{Message: domain.MsgTokenInvalid}
	for i := 0; i < 3; i++ {
		assert.Equal(t, expired, f.service.ValidateToken(ctx, token))
	}
}

func TestValidateTokenRejections(t *testing.T) {
	f := setupTestFixture(t, nil)
	ctx := context.Background()
	token := f.register(t, "alice", "alice@example.com").Token

	ghost, err := f.service.Tokens().Encode("ghost", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.MsgTokenInvalid, f.service.ValidateToken(ctx, "").Message)
	assert.Equal(t, domain.MsgTokenInvalid, f.service.ValidateToken(ctx, "a.b.c").Message)
	assert.Equal(t, domain.MsgTokenInvalid, f.service.ValidateToken(ctx, token+"x").Message)
	assert.Equal(t, domain.MsgUserUnavailable, f.service.ValidateToken(ctx, ghost).Message)

	f.repo.SetEnabled("alice", false)
	out := f.service.ValidateToken(ctx, token)
	assert.False(t, out.Valid)
	assert.Empty(t, out.Username)
	assert.Equal(t, domain.MsgUserUnavailable, out.Message)

	f.repo.Err = errors.New("connection refused")
	f.repo.SetEnabled("alice", true)
	assert.Equal(t, &domain.ValidationOutcome{Message: domain.MsgValidationFailed}, f.service.ValidateToken(ctx, token))
}

type panickingRepo struct {
	*repofake.FakeUserRepo
}

func (panickingRepo) FindByUsername(context.Context, string) (*domain.Credential, error) {
	panic("driver bug")
}

func TestValidateTokenRecoversPanics(t *testing.T) {
	f := setupTestFixture(t, panickingRepo{FakeUserRepo: repofake.NewFakeUserRepo()})
	token, err := f.service.Tokens().Encode("alice", nil)
	require.NoError(t, err)

	out := f.service.ValidateToken(context.Background(), token)
	assert.Equal(t, &domain.ValidationOutcome{Message: domain.MsgValidationFailed}, out)
}

func TestAuditServiceLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventLoginFailed, "alice", nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventUserRegistered, "bob", events.RegisteredPayload{Email: "b@example.com", Role: "USER"})))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, string(events.EventLoginFailed), entries[0].Message)
	assert.Equal(t, "alice", entries[0].ContextMap()["username"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "audit", entries[1].LoggerName)
}
