//go:build e2e

package auth_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * This includes container setup, account creation, and assertions.
 */

const (
	testImageName = "beaver-auth-test:latest"

	testPassword = "correct horse battery"
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	// Build the Docker image once before all tests
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	// Run all tests
	exitCode := m.Run()

	// Clean up the Docker image after all tests complete
	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_ACCESS_SECRET":  "e2e-access-secret-e2e-access-secret-0001",
		"JWT_REFRESH_SECRET": "e2e-refresh-secret-e2e-refresh-secret-0001",
		"DATABASE_FILE":      "/data/auth.db",
		"PEPPER_FILE":        "/data/pepper",
		"ENV":                "test",
		"LOG_LEVEL":          "info",
		"LOG_FORMAT":         "json",
	}
}

// setupAuthContainer starts the auth service in a container and returns the
// base URL. Credential rate limits are relaxed since tests sign in often.
func setupAuthContainer(t *testing.T) string {
	t.Helper()

	env := baseEnv()
	env["RATE_LIMIT_LIMIT"] = "1000"
	return startAuthContainer(t, env)
}

// setupAuthContainerWithDefaultRateLimits starts the auth service with the
// default credential rate limits, for tests of the limiter itself.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) string {
	t.Helper()
	return startAuthContainer(t, baseEnv())
}

func startAuthContainer(t *testing.T, env map[string]string) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// signup creates a fresh account and returns its first session.
func signup(t *testing.T, client *authsdk.SDKClient, email string) *authsdk.Session {
	t.Helper()

	sess, err := client.Signup(t.Context(), email, testPassword)
	require.NoError(t, err, "signup should succeed")
	require.NotEmpty(t, sess.AccessToken(), "signup should set the access cookie")
	require.NotEmpty(t, sess.RefreshToken(), "signup should set the refresh cookie")
	return sess
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()

	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
	require.NotEmpty(t, health.Uptime)
}

func requireSessionCount(t *testing.T, sess *authsdk.Session, want int) {
	t.Helper()

	got, err := sess.ActiveSessionCount(t.Context())
	require.NoError(t, err)
	require.Equal(t, want, got)
}
