package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"relay/config"
	"relay/infrastructure"
)

func testTokenConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-signing-key",
		TokenTTL:      time.Hour,
		TokenIssuer:   "relay-chat",
		TokenAudience: "chat-users",
	}
}

func TestGenerateAndVerify(t *testing.T) {
	req := require.New(t)
	tm := NewTokenManager(testTokenConfig())

	token, err := tm.Generate("user-1", "alice", "alice@example.com")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := tm.Verify(token)
	req.NoError(err)
	req.Equal("user-1", claims.UserID)
	req.Equal("alice", claims.Username)
	req.Equal("alice@example.com", claims.Email)
	req.Equal("relay-chat", claims.Issuer)
}

func TestVerifyExpiredToken(t *testing.T) {
	req := require.New(t)

	cfg := testTokenConfig()
	cfg.TokenTTL = -time.Hour
	tm := NewTokenManager(cfg)

	token, err := tm.Generate("user-1", "alice", "alice@example.com")
	req.NoError(err)

	_, err = tm.Verify(token)
	req.ErrorIs(err, infrastructure.ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	req := require.New(t)

	tm := NewTokenManager(testTokenConfig())
	token, err := tm.Generate("user-1", "alice", "alice@example.com")
	req.NoError(err)

	other := testTokenConfig()
	other.JWTSecret = "a-different-key"
	_, err = NewTokenManager(other).Verify(token)
	req.ErrorIs(err, infrastructure.ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	tm := NewTokenManager(testTokenConfig())

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := tm.Verify(token)
		require.ErrorIs(t, err, infrastructure.ErrInvalidToken, "token %q", token)
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", ""},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"Bearer a b", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := ExtractBearer(c.header); got != c.want {
			t.Errorf("ExtractBearer(%q) = %q, want %q", c.header, got, c.want)
		}
	}
}
