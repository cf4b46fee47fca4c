// tokengen mints bearer tokens for local development. It reads the signing
// secret and issuer from the same configuration the server uses, so the
// tokens it prints are accepted by a locally running API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		userID     string
		role       string
		secret     string
		ttl        time.Duration
	)

	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", envOr("CONFIG_PATH", "config.yaml"), "path to the server config file")
	flagSet.StringVarP(&userID, "user", "u", "", "user id placed in the token subject (required)")
	flagSet.StringVarP(&role, "role", "r", model.RoleUser, "role claim: user or admin")
	flagSet.StringVar(&secret, "secret", "", "signing secret (overrides config and JWT_SECRET)")
	flagSet.DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.token_ttl from config)")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	if secret != "" {
		if err := os.Setenv("JWT_SECRET", secret); err != nil {
			return fmt.Errorf("set secret: %w", err)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl).Issue(userID, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
