// Package config handles loading and validating the relay's configuration
// from environment variables, grounded on the teacher's
// internal/config/config.go Load() + getEnv helper pattern and on
// original_source/src/env.rs's dotenv().ok() call.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// APIOriginEnv and CDNOriginEnv name the two environment variables the
// core reads, matching original_source/src/env.rs's constants exactly.
const (
	APIOriginEnv = "API_ORIGIN"
	CDNOriginEnv = "CDN_ORIGIN"
)

// ListenAddr is the fixed bind address for both the stream listener and
// the datagram socket (spec §6).
const ListenAddr = "0.0.0.0:3000"

// Config holds the relay's runtime configuration.
type Config struct {
	// APIOrigin is the base URL of the external auth service; the relay
	// issues GET {APIOrigin}/auth against it.
	APIOrigin string `validate:"required,url"`

	// CDNOrigin is reserved configuration the core reads but never uses,
	// exactly as original_source/src/env.rs declares it.
	CDNOrigin string

	// ListenAddr is the bind address for the stream listener and
	// datagram socket.
	ListenAddr string `validate:"required"`

	// AuthRequestTimeout bounds the outbound auth HTTP call so a hung
	// auth service cannot stall the single-threaded event loop forever
	// (SPEC_FULL.md "Auth request timeout").
	AuthRequestTimeout time.Duration `validate:"required"`
}

// Load reads environment variables (after attempting to load a .env file,
// mirroring the teacher's cmd/api/main.go and original_source/src/env.rs)
// and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiOrigin, ok := os.LookupEnv(APIOriginEnv)
	if !ok {
		return nil, fmt.Errorf("missing required environment variable %s", APIOriginEnv)
	}

	cfg := &Config{
		APIOrigin:          apiOrigin,
		CDNOrigin:          os.Getenv(CDNOriginEnv),
		ListenAddr:         ListenAddr,
		AuthRequestTimeout: 5 * time.Second,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
