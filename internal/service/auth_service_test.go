package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/teamsforge/frontquiz-api/internal/domain/entity"
	apperrors "github.com/teamsforge/frontquiz-api/internal/pkg/errors"
)

// ============================================================================
// Моки для тестирования AuthService
// ============================================================================

// MockAuthTokenRepository реализует repository.AuthTokenRepository
type MockAuthTokenRepository struct {
	mock.Mock
}

func (m *MockAuthTokenRepository) Create(ctx context.Context, token *entity.AuthToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthTokenRepository) GetByToken(ctx context.Context, token string) (*entity.AuthToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AuthToken), args.Error(1)
}

func (m *MockAuthTokenRepository) Consume(ctx context.Context, token string) (*entity.AuthToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AuthToken), args.Error(1)
}

func (m *MockAuthTokenRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenIssuer реализует TokenIssuer
type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateToken(telegramID int64) (string, error) {
	args := m.Called(telegramID)
	return args.String(0), args.Error(1)
}

const (
	testBotToken   = "123456:TEST-BOT-TOKEN"
	testLoginToken = "5b3c4f0e-8a7d-4f63-9a4b-2f0d5e6c7a81"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestAuthService(t *testing.T) (*AuthService, *MockAuthTokenRepository, *MockTokenIssuer) {
	t.Helper()
	repo := new(MockAuthTokenRepository)
	issuer := new(MockTokenIssuer)
	svc, err := NewAuthService(repo, issuer, testBotToken)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	return svc, repo, issuer
}

// ============================================================================
// Тесты
// ============================================================================

func TestNewAuthService_RequiresDependencies(t *testing.T) {
	_, err := NewAuthService(nil, new(MockTokenIssuer), testBotToken)
	assert.Error(t, err)

	_, err = NewAuthService(new(MockAuthTokenRepository), nil, testBotToken)
	assert.Error(t, err)
}

func TestIssueLoginToken_Success(t *testing.T) {
	// Arrange
	svc, repo, _ := newTestAuthService(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(tok *entity.AuthToken) bool {
		return tok.TelegramID == 42 && tok.CreatedAt.Equal(testNow) && len(tok.Token) == 36
	})).Return(nil).Once()

	// Act
	token, err := svc.IssueLoginToken(context.Background(), 42)

	// Assert
	require.NoError(t, err)
	assert.Len(t, token, 36)
	repo.AssertExpectations(t)
}

func TestIssueLoginToken_Errors(t *testing.T) {
	svc, repo, _ := newTestAuthService(t)

	_, err := svc.IssueLoginToken(context.Background(), 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	_, err = svc.IssueLoginToken(context.Background(), 7)
	assert.Error(t, err)
}

func TestPeekToken(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		stored    *entity.AuthToken
		repoErr   error
		wantID    int64
		wantErr   error
		skipsRepo bool
	}{
		{
			name:   "действующий токен",
			token:  testLoginToken,
			stored: &entity.AuthToken{Token: testLoginToken, TelegramID: 42, CreatedAt: testNow.Add(-10 * time.Minute)},
			wantID: 42,
		},
		{
			name:    "неизвестный токен",
			token:   testLoginToken,
			repoErr: apperrors.ErrNotFound,
			wantErr: apperrors.ErrUnauthorized,
		},
		{
			name:    "истекший токен",
			token:   testLoginToken,
			stored:  &entity.AuthToken{Token: testLoginToken, TelegramID: 42, CreatedAt: testNow.Add(-2 * time.Hour)},
			wantErr: apperrors.ErrExpiredToken,
		},
		{
			name:      "не uuid",
			token:     "not-a-token",
			wantErr:   apperrors.ErrUnauthorized,
			skipsRepo: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			svc, repo, _ := newTestAuthService(t)
			if !tt.skipsRepo {
				if tt.stored != nil {
					repo.On("GetByToken", mock.Anything, tt.token).Return(tt.stored, nil).Once()
				} else {
					repo.On("GetByToken", mock.Anything, tt.token).Return(nil, tt.repoErr).Once()
				}
			}

			// Act
			id, err := svc.PeekToken(context.Background(), tt.token)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, id)
			}
			repo.AssertExpectations(t)
			repo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
		})
	}
}

func TestRedeemToken_Success(t *testing.T) {
	// Arrange
	svc, repo, issuer := newTestAuthService(t)
	repo.On("Consume", mock.Anything, testLoginToken).
		Return(&entity.AuthToken{Token: testLoginToken, TelegramID: 42, CreatedAt: testNow.Add(-time.Minute)}, nil).Once()
	issuer.On("GenerateToken", int64(42)).Return("jwt-token", nil).Once()

	// Act
	result, err := svc.RedeemToken(context.Background(), testLoginToken)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.TelegramID)
	assert.Equal(t, "jwt-token", result.AccessToken)
	repo.AssertExpectations(t)
	issuer.AssertExpectations(t)
}

func TestRedeemToken_SecondUseRejected(t *testing.T) {
	// Arrange: токен уже израсходован
	svc, repo, issuer := newTestAuthService(t)
	repo.On("Consume", mock.Anything, testLoginToken).Return(nil, apperrors.ErrNotFound).Once()

	// Act
	result, err := svc.RedeemToken(context.Background(), testLoginToken)

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	issuer.AssertNotCalled(t, "GenerateToken", mock.Anything)
}

func TestRedeemToken_Expired(t *testing.T) {
	svc, repo, issuer := newTestAuthService(t)
	repo.On("Consume", mock.Anything, testLoginToken).
		Return(&entity.AuthToken{Token: testLoginToken, TelegramID: 42, CreatedAt: testNow.Add(-61 * time.Minute)}, nil).Once()

	_, err := svc.RedeemToken(context.Background(), testLoginToken)

	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
	issuer.AssertNotCalled(t, "GenerateToken", mock.Anything)
}

func widgetFields(authDate time.Time) map[string]string {
	fields := map[string]string{
		"id":         "42",
		"first_name": "Ada",
		"username":   "ada_dev",
		"auth_date":  strconv.FormatInt(authDate.Unix(), 10),
	}
	fields["hash"] = WidgetSignature(testBotToken, fields)
	return fields
}

func TestVerifyTelegramWidget_Valid(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	id, err := svc.VerifyTelegramWidget(widgetFields(testNow.Add(-time.Hour)))

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestVerifyTelegramWidget_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantErr error
	}{
		{
			name:    "подмененное поле",
			mutate:  func(f map[string]string) { f["id"] = "43" },
			wantErr: apperrors.ErrUnauthorized,
		},
		{
			name:    "нет hash",
			mutate:  func(f map[string]string) { delete(f, "hash") },
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "устаревшая auth_date",
			mutate: func(f map[string]string) {
				f["auth_date"] = strconv.FormatInt(testNow.Add(-25*time.Hour).Unix(), 10)
				f["hash"] = WidgetSignature(testBotToken, f)
			},
			wantErr: apperrors.ErrExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestAuthService(t)
			fields := widgetFields(testNow.Add(-time.Minute))
			tt.mutate(fields)

			_, err := svc.VerifyTelegramWidget(fields)

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyTelegramWidget_DisabledWithoutBotToken(t *testing.T) {
	svc, err := NewAuthService(new(MockAuthTokenRepository), new(MockTokenIssuer), "")
	require.NoError(t, err)

	_, err = svc.VerifyTelegramWidget(widgetFields(time.Now()))

	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestWidgetSignature_IgnoresHashAndOrder(t *testing.T) {
	a := map[string]string{"id": "1", "auth_date": "100", "username": "x"}
	b := map[string]string{"username": "x", "auth_date": "100", "id": "1", "hash": "whatever"}

	assert.Equal(t, WidgetSignature(testBotToken, a), WidgetSignature(testBotToken, b))
	assert.NotEqual(t, WidgetSignature(testBotToken, a), WidgetSignature("other-token", a))
}

func TestPurgeExpired(t *testing.T) {
	// Arrange
	svc, repo, _ := newTestAuthService(t)
	repo.On("DeleteOlderThan", mock.Anything, testNow.Add(-entity.LoginTokenLifetime)).Return(int64(3), nil).Once()

	// Act
	removed, err := svc.PurgeExpired(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	repo.AssertExpectations(t)
}
