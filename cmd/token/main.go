package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kitchen/inventory/internal/infrastructure/auth"
	"github.com/kitchen/inventory/internal/infrastructure/config"
)

// token issues a bearer token for a kitchen staff member. The name becomes the
// performer recorded on every movement the token is used for.
func main() {
	var (
		subject string
		name    string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "sub", "", "Stable staff identifier (required)")
	flag.StringVar(&name, "name", "", "Display name recorded as performer (default: sub)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default: jwt.token_ttl from config)")
	flag.Parse()

	if subject == "" {
		fmt.Fprintln(os.Stderr, "usage: token -sub <id> [-name <display name>] [-ttl 12h]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if ttl > 0 {
		cfg.JWT.TokenTTL = ttl
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWT).GenerateToken(subject, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
