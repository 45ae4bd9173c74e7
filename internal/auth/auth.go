// Package auth resolves caller identities from bearer tokens and verifies
// admin credentials.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnauthenticated means the request carried no usable identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials means an admin login did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims are the JWT claims carried by access tokens. Subject is the email.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for id.
func (i *Issuer) Issue(id model.Identity) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   model.NormalizeEmail(id.Email),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verifier resolves bearer tokens into identities.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (model.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	email := model.NormalizeEmail(claims.Subject)
	if email == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	role := claims.Role
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	return model.Identity{Email: email, Role: role}, nil
}

// VerifyHeader resolves an Authorization header value ("Bearer <token>").
func (v *Verifier) VerifyHeader(header string) (model.Identity, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return model.Identity{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	return v.Verify(strings.TrimSpace(raw))
}

// AdminAuthenticator checks admin credentials against a bcrypt hash.
type AdminAuthenticator struct {
	email string
	hash  []byte
}

// NewAdminAuthenticator constructs an AdminAuthenticator. An empty hash
// disables admin login.
func NewAdminAuthenticator(email, passwordHash string) *AdminAuthenticator {
	return &AdminAuthenticator{email: model.NormalizeEmail(email), hash: []byte(passwordHash)}
}

// Authenticate returns the admin identity when email and password match.
func (a *AdminAuthenticator) Authenticate(email, password string) (model.Identity, error) {
	if len(a.hash) == 0 || a.email == "" {
		return model.Identity{}, ErrInvalidCredentials
	}
	// Compare the hash even on an email mismatch so timing does not reveal it.
	hashErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if model.NormalizeEmail(email) != a.email || hashErr != nil {
		return model.Identity{}, ErrInvalidCredentials
	}
	return model.Identity{Email: a.email, Role: model.RoleAdmin}, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
