package app

import (
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
)

// resolveSecrets returns the configured signing secrets. In dev a missing
// secret is replaced by a random one that lives as long as the process, so
// every restart logs everyone out.
func resolveSecrets(cfg Config, logger *slog.Logger) (access, refresh []byte, err error) {
	access, err = secretOrEphemeral(cfg, cfg.AccessTokenSecret, "ACCESS_TOKEN_SECRET", logger)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = secretOrEphemeral(cfg, cfg.RefreshTokenSecret, "REFRESH_TOKEN_SECRET", logger)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

func secretOrEphemeral(cfg Config, secret, name string, logger *slog.Logger) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	if cfg.Env != "dev" {
		return nil, errors.New(name + " is required outside dev")
	}

	generated, err := cryptox.GenerateToken(32)
	if err != nil {
		return nil, err
	}
	logger.Warn("using an ephemeral signing secret; tokens will not survive a restart", "secret", name)
	return []byte(generated), nil
}
