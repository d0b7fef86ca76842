package herdwatch_test

import (
	"context"
	"flag"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/herdwatch/herdwatch/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testImageName = "herdwatch-test:latest"

	adminEmail    = "admin@herdwatch.test"
	adminPassword = "Admin123!"
)

// TestMain builds the service image once for the whole suite.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stdout, "skipping e2e suite in short mode")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building HerdWatch Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up HerdWatch Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/herdwatch/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run()
}

// baseEnv is the container environment every test starts from. Rate limits
// are raised so tests can make many quick calls.
func baseEnv() map[string]string {
	return map[string]string{
		"JWT_ACCESS_SECRET":        "e2e-access-secret",
		"JWT_REFRESH_SECRET":       "e2e-refresh-secret",
		"ENV":                      "test",
		"LOG_LEVEL":                "info",
		"LOG_FORMAT":               "json",
		"BOOTSTRAP_ADMIN_EMAIL":    adminEmail,
		"BOOTSTRAP_ADMIN_PASSWORD": adminPassword,

		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
}

type containerOpts struct {
	env      map[string]string
	networks []string
}

// startService runs the service container and returns its base URL.
func startService(t *testing.T, opts containerOpts) string {
	t.Helper()
	ctx := context.Background()

	env := baseEnv()
	maps.Copy(env, opts.env)

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		Networks:     opts.networks,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

func setupService(t *testing.T) *authsdk.SDKClient {
	t.Helper()
	return authsdk.NewSDKClient(startService(t, containerOpts{}))
}

// setupServiceWithDefaultRateLimits keeps the production limits so rate
// limiting itself can be tested.
func setupServiceWithDefaultRateLimits(t *testing.T) *authsdk.SDKClient {
	t.Helper()
	return authsdk.NewSDKClient(startService(t, containerOpts{env: map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "10",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "10",
	}}))
}

// setupServiceWithRedis starts redis and the service on a shared network
// with SESSION_BACKEND=redis.
func setupServiceWithRedis(t *testing.T) *authsdk.SDKClient {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nw.Remove(ctx) })

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "redis:7-alpine",
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor:     wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	return authsdk.NewSDKClient(startService(t, containerOpts{
		env: map[string]string{
			"SESSION_BACKEND": "redis",
			"REDIS_ADDR":      "redis:6379",
		},
		networks: []string{nw.Name},
	}))
}

func farmerRequest(email string) authsdk.RegisterRequest {
	herd := 12
	return authsdk.RegisterRequest{
		Email:    email,
		Password: "secret1",
		FullName: "Ravi Kumar",
		Phone:    "+919812345678",
		Role:     "farmer",
		Language: "hi",
		FarmerProfile: &authsdk.FarmerProfileInput{
			HerdSize:       &herd,
			LivestockTypes: []string{"cattle"},
		},
	}
}

func vetRequest(email string) authsdk.RegisterRequest {
	qual := "BVSc"
	return authsdk.RegisterRequest{
		Email:      email,
		Password:   "secret1",
		FullName:   "Dr. Meera Rao",
		Phone:      "+919800000001",
		Role:       "vet",
		VetProfile: &authsdk.VetProfileInput{Qualification: &qual},
	}
}

func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
