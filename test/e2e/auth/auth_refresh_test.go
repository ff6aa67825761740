//go:build e2e

package auth_test

import (
	"testing"

	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRefreshRotatesTokens verifies a refresh issues new tokens and retires
// the presented refresh token.
func TestRefreshRotatesTokens(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	ctx := t.Context()

	sess := signup(t, client, "rotate@example.com")
	oldAccess, oldRefresh := sess.AccessToken(), sess.RefreshToken()

	require.NoError(t, sess.Refresh(ctx))
	require.NotEqual(t, oldAccess, sess.AccessToken())
	require.NotEqual(t, oldRefresh, sess.RefreshToken())

	requireSessionCount(t, sess, 1)

	replay, err := client.NewSessionFromTokens("", oldRefresh)
	require.NoError(t, err)
	err = replay.Refresh(ctx)
	require.True(t, authsdk.IsUnauthorized(err), "rotated refresh token must be rejected, got %v", err)

	// The rotated session keeps working.
	require.NoError(t, sess.Refresh(ctx))
}

// TestRefreshRejectsGarbage verifies malformed and foreign tokens are 401s.
func TestRefreshRejectsGarbage(t *testing.T) {
	client := authsdk.NewSDKClient(setupAuthContainer(t))
	ctx := t.Context()

	sess := signup(t, client, "garbage@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "not-a-jwt"},
		{"access token", sess.AccessToken()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := client.NewSessionFromTokens("", tt.token)
			require.NoError(t, err)
			require.True(t, authsdk.IsUnauthorized(s.Refresh(ctx)))
		})
	}
}
