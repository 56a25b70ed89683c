// Command token issues a signed identity token for POST /v1/session.
package main

import (
	"flag"
	"fmt"
	"os"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/cli"
	"budgetbuddy/internal/log"
)

func main() {
	userID := flag.String("user", "", "user id to sign in as (required)")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	flag.Parse()

	logger, cfg := cli.Bootstrap(log.ComponentAuth)

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: token -user <id> [-email <email>] [-ttl 24h]")
		os.Exit(2)
	}
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required to issue tokens")
		os.Exit(1)
	}

	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, lifetime)
	token, err := tokens.Issue(auth.Identity{UserID: *userID, Email: *email})
	if err != nil {
		logger.Error("Failed to issue token", log.FieldError, err)
		os.Exit(1)
	}
	logger.Debug("Issued token", log.FieldUserID, *userID, "ttl", lifetime.String())
	fmt.Println(token)
}
