package config

import (
	"context"

	"github.com/apex/log"
	"p9e.in/zeladoria/accounts"
)

// SeedAdmin makes sure the configured admin account exists. Without
// ADMIN_PHONE and ADMIN_PASSWORD nothing is seeded.
func SeedAdmin(ctx context.Context, cfg *Config, svc *accounts.Service) error {
	if cfg.AdminPhone == "" || cfg.AdminPassword == "" {
		log.Debug("no admin credentials configured, skipping admin seed")
		return nil
	}
	if err := svc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		return err
	}
	log.WithField("phone", cfg.AdminPhone).Info("admin account ready")
	return nil
}
