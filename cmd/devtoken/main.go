// Command devtoken mints HS256 bearer tokens for local development.
//
//	devtoken --uid alice --role admin
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Shivanand-hulikatti/talk-lectures/internal/auth"
	"github.com/spf13/pflag"
)

func main() {
	secret := pflag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to $JWT_SECRET)")
	issuer := pflag.String("issuer", os.Getenv("JWT_ISSUER"), "iss claim (defaults to $JWT_ISSUER)")
	uid := pflag.StringP("uid", "u", "", "caller id (required)")
	role := pflag.StringP("role", "r", string(auth.RoleMember), "member, instructor or admin")
	ttl := pflag.Duration("ttl", 24*time.Hour, "token lifetime")
	pflag.Parse()

	if err := run(*secret, *issuer, *uid, auth.Role(*role), *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(secret, issuer, uid string, role auth.Role, ttl time.Duration) error {
	if uid == "" {
		return fmt.Errorf("--uid is required")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}
	token, err := auth.IssueToken(secret, issuer, auth.Identity{ID: uid, Role: role}, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
