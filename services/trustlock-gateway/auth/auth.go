package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	contextKeyClaims contextKey = "jwt_claims"
)

// Role represents an authorized persona on the platform.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleArbiter    Role = "arbiter"
)

var allowedRoles = map[Role]struct{}{
	RoleClient:     {},
	RoleFreelancer: {},
	RoleArbiter:    {},
}

// Claims is the identity extracted from a verified bearer token. Subject is
// the wallet identity used as the ledger actor.
type Claims struct {
	Subject string
	Role    Role
}

// Options configures token verification and minting.
type Options struct {
	Secret   string
	Issuer   string
	Audience string
	// MaxSkew tolerates clock drift between token issuer and gateway.
	MaxSkew time.Duration
}

// Verifier validates HS256 bearer tokens and attaches the resulting claims
// to the request context.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewVerifier constructs a verifier from the supplied options.
func NewVerifier(opts Options) (*Verifier, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("auth: signing secret required")
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	if opts.MaxSkew > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(opts.MaxSkew))
	}
	return &Verifier{
		secret:   []byte(opts.Secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		parser:   jwt.NewParser(parserOpts...),
	}, nil
}

// Verify parses and validates a raw token, returning the claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	token, err := v.parser.Parse(raw, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("auth: unexpected claim format")
	}
	subject, _ := mapClaims.GetSubject()
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("auth: token missing subject")
	}
	roleValue, _ := mapClaims["role"].(string)
	role := Role(strings.ToLower(strings.TrimSpace(roleValue)))
	if _, ok := allowedRoles[role]; !ok {
		return nil, fmt.Errorf("auth: unsupported role %q", roleValue)
	}
	return &Claims{Subject: subject, Role: role}, nil
}

// Mint issues a signed token for the subject and role, mostly for tooling
// and tests.
func (v *Verifier) Mint(subject string, role Role, ttl time.Duration) (string, error) {
	if _, ok := allowedRoles[role]; !ok {
		return "", fmt.Errorf("auth: unsupported role %q", role)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	if v.audience != "" {
		claims["aud"] = v.audience
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Middleware enforces bearer authentication before the next handler runs.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		if authz == "" {
			http.Error(w, "missing authorization", http.StatusUnauthorized)
			return
		}
		scheme, token, found := strings.Cut(authz, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			http.Error(w, "invalid authorization scheme", http.StatusUnauthorized)
			return
		}
		claims, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			http.Error(w, "invalid authorization token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext extracts the claims attached by the middleware.
func FromContext(ctx context.Context) (*Claims, error) {
	if ctx == nil {
		return nil, errors.New("auth: missing context")
	}
	claims, ok := ctx.Value(contextKeyClaims).(*Claims)
	if !ok || claims == nil {
		return nil, errors.New("auth: missing identity")
	}
	return claims, nil
}

// RequireRole allows the request through only when the caller holds one of
// the listed roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := FromContext(r.Context())
			if err != nil {
				http.Error(w, "missing identity", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
