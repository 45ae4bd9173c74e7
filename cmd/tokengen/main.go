// tokengen mints bearer tokens and admin password hashes for local use.
//
//	tokengen -email alice@example.com
//	tokengen -email admin@event.com -role admin -ttl 1h
//	tokengen -hash 's3cret'
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

func main() {
	cfg := config.Load()

	email := flag.String("email", "", "subject email of the token")
	role := flag.String("role", string(model.RoleUser), "role claim: user or admin")
	ttl := flag.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	secret := flag.String("secret", cfg.Auth.JWTSecret, "HS256 signing secret (defaults to JWT_SECRET)")
	hash := flag.String("hash", "", "print a bcrypt hash of this password for ADMIN_PASSWORD_HASH and exit")
	flag.Parse()

	if *hash != "" {
		h, err := auth.HashPassword(*hash)
		if err != nil {
			fail("hash password: %v", err)
		}
		fmt.Println(h)
		return
	}

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}
	r := model.Role(*role)
	if r != model.RoleUser && r != model.RoleAdmin {
		fail("unknown role %q", *role)
	}

	token, exp, err := auth.NewIssuer(*secret, *ttl).Issue(model.Identity{Email: *email, Role: r})
	if err != nil {
		fail("issue token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format("2006-01-02T15:04:05Z07:00"))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tokengen: "+format+"\n", args...)
	os.Exit(1)
}
