package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/warp/leave-dashboard/ledger"
)

// Claim names carried in a session token.
const (
	ClaimEmployeeID = "employee_id"
	ClaimRole       = "role"
	ClaimTokenID    = "jti"
)

// ErrInvalidToken is returned when a token or its claims cannot be trusted.
var ErrInvalidToken = errors.New("invalid session token")

// Session is an issued token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Actor     ledger.Actor
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	tokenAuth *jwtauth.JWTAuth
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		tokenAuth: jwtauth.New("HS256", []byte(secret), nil, jwt.WithAcceptableSkew(30*time.Second)),
		ttl:       ttl,
		now:       time.Now,
	}
}

// JWTAuth returns the verifier used by the HTTP middleware.
func (s *TokenService) JWTAuth() *jwtauth.JWTAuth {
	return s.tokenAuth
}

// Issue signs a token for actor.
func (s *TokenService) Issue(actor ledger.Actor) (Session, error) {
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)

	claims := map[string]interface{}{
		ClaimEmployeeID: actor.EmployeeID,
		ClaimRole:       string(actor.Role),
		ClaimTokenID:    uuid.NewString(),
	}
	jwtauth.SetExpiry(claims, expiresAt)

	_, token, err := s.tokenAuth.Encode(claims)
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt, Actor: actor}, nil
}

// Verify parses and validates token, returning its actor.
func (s *TokenService) Verify(ctx context.Context, token string) (ledger.Actor, error) {
	t, err := jwtauth.VerifyToken(s.tokenAuth, token)
	if err != nil {
		return ledger.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, err := t.AsMap(ctx)
	if err != nil {
		return ledger.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actorFromClaims(claims)
}

// ActorFromContext returns the actor of a request that passed jwtauth.Verifier.
func ActorFromContext(ctx context.Context) (ledger.Actor, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return ledger.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return actorFromClaims(claims)
}

func actorFromClaims(claims map[string]interface{}) (ledger.Actor, error) {
	id, _ := claims[ClaimEmployeeID].(string)
	role, _ := claims[ClaimRole].(string)
	if id == "" {
		return ledger.Actor{}, fmt.Errorf("%w: missing %s", ErrInvalidToken, ClaimEmployeeID)
	}
	switch ledger.Role(role) {
	case ledger.RoleEmployee, ledger.RoleAdmin:
	default:
		return ledger.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return ledger.Actor{EmployeeID: id, Role: ledger.Role(role)}, nil
}
