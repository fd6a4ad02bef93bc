package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	infisical "github.com/infisical/go-sdk"
)

// MonitorsEnv names the environment variable (and secret) holding a JSON
// array of monitors.
const MonitorsEnv = "MONITORS_CONFIG"

const (
	defaultInfisicalSiteURL = "https://app.infisical.com"
	infisicalTimeout        = 10 * time.Second
)

// SecretSource retrieves named secrets from an external store.
type SecretSource interface {
	Secret(ctx context.Context, key string) (string, error)
}

// InfisicalSource reads secrets from Infisical using universal auth.
type InfisicalSource struct {
	SiteURL      string
	ClientID     string
	ClientSecret string
	ProjectID    string
	Environment  string
	SecretPath   string
}

// InfisicalFromEnv builds an [InfisicalSource] from INFISICAL_CLIENT_ID,
// INFISICAL_CLIENT_SECRET and INFISICAL_PROJECT_ID, with optional
// INFISICAL_SITE_URL, INFISICAL_ENV (default "prod") and
// INFISICAL_SECRET_PATH (default "/"). It reports false when any required
// variable is missing.
func InfisicalFromEnv() (*InfisicalSource, bool) {
	src := &InfisicalSource{
		SiteURL:      envOr("INFISICAL_SITE_URL", defaultInfisicalSiteURL),
		ClientID:     os.Getenv("INFISICAL_CLIENT_ID"),
		ClientSecret: os.Getenv("INFISICAL_CLIENT_SECRET"),
		ProjectID:    os.Getenv("INFISICAL_PROJECT_ID"),
		Environment:  envOr("INFISICAL_ENV", "prod"),
		SecretPath:   envOr("INFISICAL_SECRET_PATH", "/"),
	}
	if src.ClientID == "" || src.ClientSecret == "" || src.ProjectID == "" {
		return nil, false
	}
	return src, true
}

// Secret implements [SecretSource].
func (s *InfisicalSource) Secret(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, infisicalTimeout)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          s.SiteURL,
		AutoTokenRefresh: false,
	})

	if _, err := client.Auth().UniversalAuthLogin(s.ClientID, s.ClientSecret); err != nil {
		return "", fmt.Errorf("infisical auth failed: %w", err)
	}

	secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
		SecretKey:   key,
		Environment: s.Environment,
		ProjectID:   s.ProjectID,
		SecretPath:  s.SecretPath,
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret %q: %w", key, err)
	}
	return secret.SecretValue, nil
}

// Resolve assembles the configuration used by the CLI.
//
// The YAML file at path is loaded when path is non-empty. Monitors from the
// MONITORS_CONFIG environment variable are appended after the file's. When
// that variable is unset and secrets is non-nil, the secret of the same name
// is used instead; a failed secret lookup is recorded as a warning.
//
// Returns an error if no valid monitor remains.
func Resolve(ctx context.Context, path string, secrets SecretSource) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	raw := os.Getenv(MonitorsEnv)
	var secretErr error
	if raw == "" && secrets != nil {
		raw, secretErr = secrets.Secret(ctx, MonitorsEnv)
		if secretErr != nil {
			cfg.warnf("%s: %v", MonitorsEnv, secretErr)
		}
	}

	if raw != "" {
		if err := cfg.AddMonitorsJSON([]byte(raw)); err != nil {
			return nil, fmt.Errorf("%s: %w", MonitorsEnv, err)
		}
	}

	if path == "" && raw == "" {
		if secretErr != nil {
			return nil, fmt.Errorf("no configuration: %w", secretErr)
		}
		return nil, errors.New("no configuration: pass a config file or set " + MonitorsEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
