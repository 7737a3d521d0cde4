package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/models"
	"github.com/slotbook/slotbook/internal/storage/memory"
	"github.com/slotbook/slotbook/internal/util"
)

type stubMailer struct {
	mu        sync.Mutex
	links     []string
	changed   []string
	failSends bool
}

func (m *stubMailer) SendPasswordReset(_ context.Context, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSends {
		return assert.AnError
	}
	m.links = append(m.links, link)
	return nil
}

func (m *stubMailer) NotifyPasswordChanged(_ context.Context, recipient string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, recipient)
}

func (m *stubMailer) sentLinks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.links...)
}

func (m *stubMailer) lastToken(t *testing.T) string {
	t.Helper()
	links := m.sentLinks()
	require.NotEmpty(t, links)
	parts := strings.SplitN(links[len(links)-1], "token=", 2)
	require.Len(t, parts, 2)
	return parts[1]
}

type stubThrottle struct {
	allow bool
	err   error
}

func (s *stubThrottle) Allow(context.Context, string) (bool, error) {
	return s.allow, s.err
}

type resetFixture struct {
	st        *memory.Storage
	passwords *PasswordService
	refresh   *RefreshService
	mailer    *stubMailer
	throttle  *stubThrottle
	reset     *ResetService
	user      *models.User
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()

	st := memory.NewStorage()
	tokens := newTestTokenService(t, 15*time.Minute)
	passwords := testPasswordService()
	refresh := newTestRefreshService(st)
	mailer := &stubMailer{}
	throttle := &stubThrottle{allow: true}

	reset := NewResetService(
		tokens,
		passwords,
		refresh,
		st,
		throttle,
		mailer,
		&util.TokenConfig{ResetTTL: 15 * time.Minute},
		&util.ResetConfig{LinkBaseURL: "https://app.example.com/reset-password"},
		zap.NewNop().Sugar(),
	)

	hash, err := passwords.HashPassword("Original1!")
	require.NoError(t, err)

	user := testUser()
	user.PasswordHash = hash
	st.AddUser(*user)

	return &resetFixture{
		st:        st,
		passwords: passwords,
		refresh:   refresh,
		mailer:    mailer,
		throttle:  throttle,
		reset:     reset,
		user:      user,
	}
}

func TestResetService_FullFlow(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))

	stored, err := f.st.GetUserByID(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiry)

	rawToken := f.mailer.lastToken(t)
	assert.Equal(t, HashToken(rawToken), *stored.ResetTokenHash)

	require.NoError(t, f.reset.ResetPassword(ctx, rawToken, "Fresh12345!"))

	// Password actually changed and token fields were consumed.
	stored, err = f.st.GetUserByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.True(t, f.passwords.VerifyPassword(stored.PasswordHash, "Fresh12345!"))
	assert.False(t, f.passwords.VerifyPassword(stored.PasswordHash, "Original1!"))
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)

	assert.Equal(t, []string{f.user.Email}, f.mailer.changed)
}

func TestResetService_TokenIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	rawToken := f.mailer.lastToken(t)

	require.NoError(t, f.reset.ResetPassword(ctx, rawToken, "Fresh12345!"))

	// Second use fails even though the JWT itself has not expired.
	err := f.reset.ResetPassword(ctx, rawToken, "Another12345!")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetService_NewRequestInvalidatesPriorToken(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	firstToken := f.mailer.lastToken(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	secondToken := f.mailer.lastToken(t)
	require.NotEqual(t, firstToken, secondToken)

	err := f.reset.ResetPassword(ctx, firstToken, "Fresh12345!")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	require.NoError(t, f.reset.ResetPassword(ctx, secondToken, "Fresh12345!"))
}

func TestResetService_ExpiredRowRejectsValidJWT(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	rawToken := f.mailer.lastToken(t)

	// Force the DB-side expiry into the past while the JWT stays valid:
	// the two checks are independent and either one must reject.
	require.NoError(t, f.st.SetResetToken(ctx, f.user.ID, HashToken(rawToken),
		time.Now().UTC().Add(-time.Minute), testMeta))

	err := f.reset.ResetPassword(ctx, rawToken, "Fresh12345!")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetService_InactiveUserRejected(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	rawToken := f.mailer.lastToken(t)

	inactive := *f.user
	inactive.IsActive = false
	f.st.AddUser(inactive)

	err := f.reset.ResetPassword(ctx, rawToken, "Fresh12345!")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetService_WeakReplacementPassword(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	rawToken := f.mailer.lastToken(t)

	err := f.reset.ResetPassword(ctx, rawToken, "weak")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Violations)

	// The token survives a rejected attempt and still works.
	require.NoError(t, f.reset.ResetPassword(ctx, rawToken, "Fresh12345!"))
}

func TestResetService_RevokesSessionsAfterReset(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	_, rawRefresh, err := f.refresh.Issue(ctx, f.user.ID, testMeta)
	require.NoError(t, err)

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	require.NoError(t, f.reset.ResetPassword(ctx, f.mailer.lastToken(t), "Fresh12345!"))

	_, err = f.refresh.Validate(ctx, rawRefresh)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetService_RequestIsGenericForUnknownAndInactive(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)

	require.NoError(t, f.reset.RequestReset(ctx, "nobody@example.com", testMeta))
	assert.Empty(t, f.mailer.sentLinks())

	inactive := *f.user
	inactive.IsActive = false
	f.st.AddUser(inactive)
	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	assert.Empty(t, f.mailer.sentLinks())
}

func TestResetService_Throttled(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)
	f.throttle.allow = false

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	assert.Empty(t, f.mailer.sentLinks())

	stored, err := f.st.GetUserByID(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTokenHash)
}

func TestResetService_ThrottleFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)
	f.throttle.err = assert.AnError

	require.NoError(t, f.reset.RequestReset(ctx, f.user.Email, testMeta))
	assert.Len(t, f.mailer.sentLinks(), 1)
}

func TestResetService_MailFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	f := newResetFixture(t)
	f.mailer.failSends = true

	err := f.reset.RequestReset(ctx, f.user.Email, testMeta)
	require.Error(t, err)
}
