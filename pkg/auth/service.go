package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

/*
Principal is the authenticated caller. An empty Roots list grants every
root.
*/
type Principal struct {
	Subject string
	Roots   []string
}

// CanSee reports whether the principal may access rootID.
func (p Principal) CanSee(rootID string) bool {
	return len(p.Roots) == 0 || slices.Contains(p.Roots, rootID)
}

/*
PrincipalKey is the context key PrincipalFrom reads. Request contexts that
keep their values in a store of their own, like fiber's Locals, set it
directly.
*/
type PrincipalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey{}).(Principal)
	return p, ok
}

// Authorized is a documents.Authorizer backed by the principal in ctx.
func Authorized(ctx context.Context, rootID string) bool {
	p, ok := PrincipalFrom(ctx)
	return ok && p.CanSee(rootID)
}

/*
Service handles authentication and token management. Revoked token ids are
remembered until the token would have expired anyway.
*/
type Service struct {
	mu            sync.RWMutex
	tokens        map[string]*TokenInfo
	refreshTokens map[string]string
	revoked       map[string]time.Time
	limiter       *KeyedLimiter
	signingKey    []byte
	ttl           time.Duration
	refreshTTL    time.Duration
}

// TokenInfo represents a JWT token and its metadata
type TokenInfo struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RefreshToken string    `json:"refreshToken"`
	Scheme       string    `json:"scheme"`

	refreshExpiresAt time.Time
}

const refreshType = "refresh"

/*
NewService creates an authentication service signing HS256 tokens with key.
Each subject may authenticate at most ratePerMinute times per minute.
*/
func NewService(key string, ratePerMinute int64) *Service {
	if ratePerMinute <= 0 {
		ratePerMinute = 100
	}

	return &Service{
		tokens:        make(map[string]*TokenInfo),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]time.Time),
		limiter:       NewKeyedLimiter(ratePerMinute, time.Minute),
		signingKey:    []byte(key),
		ttl:           time.Hour,
		refreshTTL:    24 * time.Hour,
	}
}

func (s *Service) getSigningKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.signingKey, nil
}

func (s *Service) parse(tokenStr string, opts ...jwt.ParserOption) (jwt.MapClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))

	token, err := jwt.Parse(tokenStr, s.getSigningKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// AuthenticateRequest authenticates an HTTP request
func (s *Service) AuthenticateRequest(req *http.Request) (Principal, error) {
	return s.Authenticate(req.Header.Get("Authorization"))
}

/*
Authenticate validates an Authorization header value, with or without the
Bearer prefix, and returns the principal it carries.
*/
func (s *Service) Authenticate(header string) (Principal, error) {
	if header == "" {
		return Principal{}, fmt.Errorf("missing authorization header")
	}

	claims, err := s.parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return Principal{}, err
	}

	// A refresh token carries no roots claim and must not pass for one that sees everything.
	if claims["typ"] == refreshType {
		return Principal{}, fmt.Errorf("refresh tokens cannot authenticate requests")
	}

	if s.isRevoked(claims) {
		return Principal{}, fmt.Errorf("token revoked")
	}

	sub, _ := claims.GetSubject()

	if !s.limiter.Allow(sub) {
		return Principal{}, fmt.Errorf("rate limit exceeded, retry in %s", s.limiter.WaitTime(sub).Round(time.Second))
	}

	return Principal{Subject: sub, Roots: rootsClaim(claims)}, nil
}

func (s *Service) isRevoked(claims jwt.MapClaims) bool {
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, revoked := s.revoked[jti]
	return revoked
}

func rootsClaim(claims jwt.MapClaims) []string {
	raw, ok := claims["roots"].([]any)
	if !ok {
		return nil
	}

	roots := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roots = append(roots, s)
		}
	}

	return roots
}

/*
IssueToken signs a token for subject, optionally limited to some roots.
*/
func (s *Service) IssueToken(subject string, roots ...string) (*TokenInfo, error) {
	claims := jwt.MapClaims{"sub": subject}

	if len(roots) > 0 {
		claims["roots"] = roots
	}

	return s.GenerateToken("Bearer", claims)
}

// GenerateToken generates a new JWT token
func (s *Service) GenerateToken(scheme string, claims jwt.MapClaims) (*TokenInfo, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	refreshExpiresAt := now.Add(s.refreshTTL)

	claims["exp"] = expiresAt.Unix()
	claims["jti"] = uuid.NewString()

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refreshTokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": claims["sub"],
		"exp": refreshExpiresAt.Unix(),
		"jti": uuid.NewString(),
		"typ": refreshType,
	}).SignedString(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenInfo := &TokenInfo{
		Token:            tokenStr,
		ExpiresAt:        expiresAt,
		RefreshToken:     refreshTokenStr,
		Scheme:           scheme,
		refreshExpiresAt: refreshExpiresAt,
	}

	s.mu.Lock()
	s.prune(now)
	s.tokens[tokenStr] = tokenInfo
	s.refreshTokens[refreshTokenStr] = tokenStr
	s.mu.Unlock()

	return tokenInfo, nil
}

/*
RefreshToken issues a new token carrying the claims behind a refresh token
and revokes the token it replaces. Each refresh token works once.
*/
func (s *Service) RefreshToken(refreshToken string) (*TokenInfo, error) {
	refreshClaims, err := s.parse(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	if refreshClaims["typ"] != refreshType {
		return nil, fmt.Errorf("invalid refresh token")
	}

	s.mu.RLock()
	oldToken, exists := s.refreshTokens[refreshToken]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("invalid refresh token")
	}

	// The old access token may have expired; only its signature matters here.
	claims, err := s.parse(oldToken, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("failed to parse old token: %w", err)
	}

	if err := s.RevokeToken(oldToken); err != nil {
		return nil, err
	}

	return s.GenerateToken("Bearer", claims)
}

/*
RevokeToken refuses token from now on, along with its refresh token. Any
token this service could have signed can be revoked, including ones issued
before a restart.
*/
func (s *Service) RevokeToken(token string) error {
	token = strings.TrimPrefix(token, "Bearer ")

	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return fmt.Errorf("token has no id to revoke")
	}

	expiresAt := time.Now().Add(s.ttl)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[jti] = expiresAt

	if tokenInfo, exists := s.tokens[token]; exists {
		delete(s.tokens, token)
		delete(s.refreshTokens, tokenInfo.RefreshToken)
	}

	s.prune(time.Now())
	return nil
}

// prune drops bookkeeping for tokens that can no longer be used. Callers hold mu.
func (s *Service) prune(now time.Time) {
	for jti, expiresAt := range s.revoked {
		if now.After(expiresAt) {
			delete(s.revoked, jti)
		}
	}

	for token, info := range s.tokens {
		if now.After(info.refreshExpiresAt) {
			delete(s.tokens, token)
			delete(s.refreshTokens, info.RefreshToken)
		}
	}
}

// GetTokenInfo retrieves token information
func (s *Service) GetTokenInfo(token string) (*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenInfo, exists := s.tokens[token]
	if !exists {
		return nil, fmt.Errorf("token not found")
	}

	return tokenInfo, nil
}

// Len reports how many issued tokens are still tracked.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
