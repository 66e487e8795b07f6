package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

// MockLoginIssuer реализует LoginIssuer
type MockLoginIssuer struct {
	mock.Mock
}

func (m *MockLoginIssuer) IssueLoginToken(ctx context.Context, telegramID int64) (string, error) {
	args := m.Called(ctx, telegramID)
	return args.String(0), args.Error(1)
}

// MockMembershipChecker реализует MembershipChecker
type MockMembershipChecker struct {
	mock.Mock
}

func (m *MockMembershipChecker) MemberStatus(channel string, userID int64) (string, error) {
	args := m.Called(channel, userID)
	return args.String(0), args.Error(1)
}

// fakeContext подменяет только нужные обработчику методы tele.Context
type fakeContext struct {
	tele.Context
	sender *tele.User
	sent   []string
}

func (f *fakeContext) Sender() *tele.User { return f.sender }

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what.(string))
	return nil
}

func TestHandleStart_Subscribed(t *testing.T) {
	// Arrange
	issuer := new(MockLoginIssuer)
	members := new(MockMembershipChecker)
	members.On("MemberStatus", "@frontend", int64(42)).Return("member", nil).Once()
	issuer.On("IssueLoginToken", mock.Anything, int64(42)).Return("tok-1", nil).Once()
	b := newBot(issuer, members, "@frontend", "https://app.example/")
	c := &fakeContext{sender: &tele.User{ID: 42, FirstName: "Аня"}}

	// Act
	err := b.handleStart(c)

	// Assert
	require.NoError(t, err)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "https://app.example/auth?token=tok-1")
	issuer.AssertExpectations(t)
	members.AssertExpectations(t)
}

func TestHandleStart_NotSubscribed(t *testing.T) {
	// Arrange
	issuer := new(MockLoginIssuer)
	members := new(MockMembershipChecker)
	members.On("MemberStatus", "@frontend", int64(42)).Return("left", nil).Once()
	b := newBot(issuer, members, "@frontend", "https://app.example")
	c := &fakeContext{sender: &tele.User{ID: 42}}

	// Act
	err := b.handleStart(c)

	// Assert
	require.NoError(t, err)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], "друг")
	assert.Contains(t, c.sent[0], "https://t.me/frontend")
	issuer.AssertNotCalled(t, "IssueLoginToken", mock.Anything, mock.Anything)
}

func TestHandleStart_NameIsEscaped(t *testing.T) {
	issuer := new(MockLoginIssuer)
	members := new(MockMembershipChecker)
	members.On("MemberStatus", "@frontend", int64(8)).Return("left", nil).Once()
	b := newBot(issuer, members, "@frontend", "https://app.example")
	c := &fakeContext{sender: &tele.User{ID: 8, FirstName: "*dev_[ops]*"}}

	require.NoError(t, b.handleStart(c))

	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0], `\*dev\_\[ops]\*`)
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Аня", "Аня"},
		{"a_b", `a\_b`},
		{"`code`", "\\`code\\`"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeMarkdown(tt.in))
		})
	}
}

func TestHandleStart_CheckFailureDeniesAccess(t *testing.T) {
	issuer := new(MockLoginIssuer)
	members := new(MockMembershipChecker)
	members.On("MemberStatus", "@frontend", int64(7)).Return("", errors.New("chat not found")).Once()
	b := newBot(issuer, members, "@frontend", "https://app.example")
	c := &fakeContext{sender: &tele.User{ID: 7, FirstName: "Иван"}}

	require.NoError(t, b.handleStart(c))

	assert.Contains(t, c.sent[0], "Иван")
	issuer.AssertNotCalled(t, "IssueLoginToken", mock.Anything, mock.Anything)
}

func TestHandleStart_IssueFailure(t *testing.T) {
	issuer := new(MockLoginIssuer)
	members := new(MockMembershipChecker)
	members.On("MemberStatus", "@frontend", int64(42)).Return("creator", nil).Once()
	issuer.On("IssueLoginToken", mock.Anything, int64(42)).Return("", errors.New("db down")).Once()
	b := newBot(issuer, members, "@frontend", "https://app.example")
	c := &fakeContext{sender: &tele.User{ID: 42}}

	require.NoError(t, b.handleStart(c))

	assert.Equal(t, []string{msgIssueFailed}, c.sent)
}

func TestIsActiveMember(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"member", true},
		{"administrator", true},
		{"creator", true},
		{"left", false},
		{"kicked", false},
		{"restricted", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, isActiveMember(tt.status))
		})
	}
}

func TestBuildAuthLink(t *testing.T) {
	assert.Equal(t, "http://localhost:5173/auth?token=a%2Bb", buildAuthLink("http://localhost:5173/", "a+b"))
	assert.Equal(t, "https://t.me/frontend", channelLink("@frontend"))
}
