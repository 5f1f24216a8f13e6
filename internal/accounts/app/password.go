package app

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/clipshare/internal/accounts/service"
	"github.com/aussiebroadwan/clipshare/pkg/cryptox"
)

// SetPassword resets a user's password from the operator CLI. It needs only
// the store, so it runs without the rest of the service.
func SetPassword(ctx context.Context, cfg Config, username, password string) error {
	if err := cryptox.LoadPepper(cfg.PepperFile); err != nil {
		return err
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()

	auth := &service.AuthService{Store: st}
	return auth.SetPassword(ctx, username, password)
}
