package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/d-khalang/SMM/internal/infrastructure/config"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver: config.DriverMongoDB,
		URL:    "mongodb://127.0.0.1:27017",
		Name:   "smm_test",
	}
}

func TestClientOptions(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		opts, err := clientOptions(testConfig())
		if err != nil {
			t.Fatalf("clientOptions() error = %v", err)
		}
		if opts.AppName == nil || *opts.AppName != defaultAppName {
			t.Errorf("AppName = %v, want %q", opts.AppName, defaultAppName)
		}
		if len(opts.Hosts) != 1 || opts.Hosts[0] != "127.0.0.1:27017" {
			t.Errorf("Hosts = %v", opts.Hosts)
		}
	})

	tests := []struct {
		name   string
		mutate func(*config.DatabaseConfig)
	}{
		{"empty url", func(c *config.DatabaseConfig) { c.URL = "" }},
		{"empty name", func(c *config.DatabaseConfig) { c.Name = "" }},
		{"bad scheme", func(c *config.DatabaseConfig) { c.URL = "postgres://localhost" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := clientOptions(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("clientOptions() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestClosedClient(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close() on closed client error = %v", err)
	}
}

func TestConnect_Integration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run against a local MongoDB")
	}
	ctx := context.Background()

	client, err := Connect(ctx, testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close(ctx) //nolint:errcheck // Test cleanup

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if client.Database().Name() != "smm_test" {
		t.Errorf("Database().Name() = %q", client.Database().Name())
	}
}
