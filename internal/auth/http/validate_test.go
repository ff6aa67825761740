package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSignupRequest(t *testing.T) {
	tests := []struct {
		name string
		req  signupRequest
		desc string
	}{
		{"valid", signupRequest{Email: "bob@example.com", Password: "correct horse"}, ""},
		{"multibyte password counts runes", signupRequest{Email: "bob@example.com", Password: strings.Repeat("é", 8)}, ""},
		{"missing email", signupRequest{Password: "correct horse"}, "email is required"},
		{"bad email", signupRequest{Email: "not-an-email", Password: "correct horse"}, "email must be a valid email address"},
		{"display name form", signupRequest{Email: "Bob <bob@example.com>", Password: "correct horse"}, "email must be a valid email address"},
		{"short password", signupRequest{Email: "bob@example.com", Password: strings.Repeat("é", 7)}, "password must be at least 8 characters"},
		{"long password", signupRequest{Email: "bob@example.com", Password: strings.Repeat("x", 129)}, "password must be at most 128 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := validateRequest(tt.req)
			if tt.desc == "" {
				require.Nil(t, apiErr)
				return
			}
			require.NotNil(t, apiErr)
			require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			require.Equal(t, tt.desc, apiErr.Description)
		})
	}
}

func TestValidateSigninRequest(t *testing.T) {
	require.Nil(t, validateRequest(signinRequest{Email: "bob@example.com", Password: "x"}))

	apiErr := validateRequest(signinRequest{Email: "bob@example.com"})
	require.NotNil(t, apiErr)
	require.Equal(t, "password is required", apiErr.Description)
}
