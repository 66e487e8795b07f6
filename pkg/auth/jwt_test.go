package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", 1, 60)
	assert.Error(t, err)
}

func TestJWTService_RoundTrip(t *testing.T) {
	// Arrange
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)

	// Act
	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	claims, err := svc.ParseToken(token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.TelegramID)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTService_Rejections(t *testing.T) {
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)
	other, err := NewJWTService("other-secret", 1, 60)
	require.NoError(t, err)

	foreign, err := other.GenerateToken(42)
	require.NoError(t, err)
	ticket, err := svc.GenerateWSTicket(42)
	require.NoError(t, err)

	expiredSvc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.GenerateToken(42)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "мусор", token: "not-a-jwt", wantErr: ErrTokenMalformed},
		{name: "чужая подпись", token: foreign, wantErr: ErrTokenSignature},
		{name: "тикет вместо токена доступа", token: ticket, wantErr: ErrTokenUsage},
		{name: "истекший", token: expired, wantErr: ErrTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ParseToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJWTService_WSTicket(t *testing.T) {
	svc, err := NewJWTService("test-secret", 1, 60)
	require.NoError(t, err)

	ticket, err := svc.GenerateWSTicket(7)
	require.NoError(t, err)
	claims, err := svc.ParseWSTicket(ticket)

	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.TelegramID)
}
