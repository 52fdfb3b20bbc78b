package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/auth"
	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserDocuments struct {
	calls []string
	n     int
	err   error
}

func (f *fakeUserDocuments) DeleteUser(_ context.Context, userID string) (int, error) {
	f.calls = append(f.calls, userID)
	return f.n, f.err
}

func newUserService(t *testing.T) (*UserService, repomanager.RepositoryManager, *recordingAudit, *fakeUserDocuments) {
	t.Helper()
	m := newStore(t)
	rec := &recordingAudit{}
	docs := &fakeUserDocuments{}
	return NewUserService(m, testConfig(), rec, docs, logging.NewNop()), m, rec, docs
}

func TestUserService_Register(t *testing.T) {
	s, m, rec, _ := newUserService(t)
	ctx := context.Background()

	sess, err := s.Register(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, sess.User)
	assert.Equal(t, "a@example.com", sess.User.Email)
	assert.NotEqual(t, "password123", sess.User.PasswordHash)
	assert.True(t, strings.HasPrefix(sess.User.PasswordHash, "$2"))

	id, err := auth.ParseToken(sess.Token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.UserID)
	assert.Equal(t, "a@example.com", id.Email)

	err = m.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		u, err := r.Users().GetUserByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, sess.User.ID, u.ID)
		return nil
	})
	require.NoError(t, err)

	e := rec.last()
	assert.Equal(t, audit.ActionUserRegister, e.Action)
	assert.Equal(t, audit.OutcomeSuccess, e.Outcome)
	assert.Equal(t, sess.User.ID, e.TargetID)
}

func TestUserService_RegisterDuplicateEmail(t *testing.T) {
	s, _, rec, _ := newUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	_, err = s.Register(ctx, "a@example.com", "different-pass")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	assert.Equal(t, audit.OutcomeFailure, rec.last().Outcome)

	_, err = s.Register(ctx, "A@example.com", "password123")
	assert.NoError(t, err, "email match is case-sensitive")
}

func TestUserService_RegisterValidation(t *testing.T) {
	s, _, rec, _ := newUserService(t)

	_, err := s.Register(context.Background(), "not-an-email", "short")
	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "password")
	assert.Empty(t, rec.actions(), "rejected input is not audited")

	_, err = s.Register(context.Background(), "b@example.com", strings.Repeat("x", 73))
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "password")
}

func TestUserService_Login(t *testing.T) {
	s, _, rec, _ := newUserService(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	sess, err := s.Login(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, audit.ActionUserLogin, rec.last().Action)

	_, errWrong := s.Login(ctx, "a@example.com", "wrong-password")
	_, errUnknown := s.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, errWrong, common.ErrorInvalidCredentials)
	assert.ErrorIs(t, errUnknown, common.ErrorInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	e := rec.last()
	assert.Equal(t, audit.ActionUserLoginFailed, e.Action)
	assert.Equal(t, audit.OutcomeDenied, e.Outcome)
}

func TestUserService_LoginValidation(t *testing.T) {
	s, _, _, _ := newUserService(t)
	_, err := s.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestUserService_AuditFailureDoesNotFailOperation(t *testing.T) {
	m := newStore(t)
	rec := &recordingAudit{err: errBoom}
	s := NewUserService(m, testConfig(), rec, nil, logging.NewNop())

	_, err := s.Register(context.Background(), "a@example.com", "password123")
	assert.NoError(t, err)
	assert.Len(t, rec.actions(), 1)
}

func TestUserService_DeleteUser(t *testing.T) {
	s, m, rec, docs := newUserService(t)
	ctx := context.Background()

	sess, err := s.Register(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	other, err := s.Register(ctx, "b@example.com", "password123")
	require.NoError(t, err)

	reports := NewReportService(m, newCipher(t), nil, metrics.OpenSet(), nil, nil, logging.NewNop())
	for _, uid := range []string{sess.User.ID, sess.User.ID, other.User.ID} {
		_, err := reports.Create(ctx, uid, CreateReportInput{Summary: "s", Raw: "r", Insights: []string{}, Glossary: []string{}})
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteUser(ctx, sess.User.ID))
	assert.Equal(t, []string{sess.User.ID}, docs.calls)
	assert.Equal(t, audit.ActionUserDelete, rec.last().Action)

	err = m.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		_, err := r.Users().GetUserByID(ctx, sess.User.ID)
		assert.ErrorIs(t, err, common.ErrorNotFound)

		mine, err := r.Reports().ListByUser(ctx, sess.User.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, mine)

		theirs, err := r.Reports().ListByUser(ctx, other.User.ID, 0)
		require.NoError(t, err)
		assert.Len(t, theirs, 1)
		return nil
	})
	require.NoError(t, err)

	_, err = s.Login(ctx, "a@example.com", "password123")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)

	err = s.DeleteUser(ctx, sess.User.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, audit.OutcomeFailure, rec.last().Outcome)
	assert.Len(t, docs.calls, 1, "archive untouched when the store delete fails")
}

func TestUserService_DeleteUserArchiveErrorIsNotFatal(t *testing.T) {
	s, m, _, docs := newUserService(t)
	docs.err = errBoom
	addUser(t, m, "u-1", "x@example.com")

	assert.NoError(t, s.DeleteUser(context.Background(), "u-1"))
	assert.Equal(t, []string{"u-1"}, docs.calls)
}

func TestUserService_CanceledContext(t *testing.T) {
	s, _, _, _ := newUserService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Register(ctx, "a@example.com", "password123")
	assert.ErrorIs(t, err, context.Canceled)
}

