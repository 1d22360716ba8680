package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/turuturustars/turuturustars-sub001/config"
	"github.com/turuturustars/turuturustars-sub001/idp"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"github.com/turuturustars/turuturustars-sub001/v1/utils"
)

// JWKS represents the JSON Web Key Set structure
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a single JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWTAuthConfig contains configuration for bearer token authentication
type JWTAuthConfig struct {
	Mode             string
	JWKSURL          string
	Secret           string
	ExpectedIssuer   string
	ExpectedAudience string
	KeyCacheTTL      time.Duration
	Timeout          time.Duration
	// Verifier is used in remote mode
	Verifier idp.TokenVerifier
}

// JWTAuthMiddleware authenticates requests by their bearer token
type JWTAuthMiddleware struct {
	config     JWTAuthConfig
	httpClient *http.Client
	keys       *cache.Cache
	fetchMu    sync.Mutex
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(cfg JWTAuthConfig) (*JWTAuthMiddleware, error) {
	cfg.Mode = strings.ToLower(cfg.Mode)
	switch cfg.Mode {
	case config.AuthModeJWKS:
		if cfg.JWKSURL == "" {
			return nil, fmt.Errorf("JWKS URL is required for jwks mode")
		}
	case config.AuthModeHS256:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("secret is required for hs256 mode")
		}
	case config.AuthModeRemote:
		if cfg.Verifier == nil {
			return nil, fmt.Errorf("token verifier is required for remote mode")
		}
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.KeyCacheTTL == 0 {
		cfg.KeyCacheTTL = time.Hour
	}

	return &JWTAuthMiddleware{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		keys:       cache.New(cfg.KeyCacheTTL, 2*cfg.KeyCacheTTL),
	}, nil
}

// AuthenticateJWT returns a middleware function that validates bearer tokens
func (j *JWTAuthMiddleware) AuthenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := utils.ExtractBearerToken(r)
		if err != nil {
			slog.Warn("Failed to extract bearer token", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or missing authorization header")
			return
		}

		user, err := j.Authenticate(r.Context(), tokenString)
		if err != nil {
			slog.Warn("Token validation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		slog.Debug("User authenticated",
			"userId", user.UserID,
			"path", r.URL.Path,
			"method", r.Method)

		next.ServeHTTP(w, r.WithContext(utils.SetAuthenticatedUser(r.Context(), user)))
	})
}

// Authenticate verifies a bearer token according to the configured mode
func (j *JWTAuthMiddleware) Authenticate(ctx context.Context, tokenString string) (*models.AuthenticatedUser, error) {
	if j.config.Mode == config.AuthModeRemote {
		return j.verifyRemote(ctx, tokenString)
	}
	return j.validateToken(ctx, tokenString)
}

func (j *JWTAuthMiddleware) verifyRemote(ctx context.Context, tokenString string) (*models.AuthenticatedUser, error) {
	info, err := j.config.Verifier.VerifyToken(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("remote verification failed: %w", err)
	}
	if info == nil || info.Id == "" {
		return nil, fmt.Errorf("remote verification returned no subject")
	}
	return &models.AuthenticatedUser{UserID: info.Id, Email: info.Email}, nil
}

// validateToken parses a signed token locally and checks its standard claims
func (j *JWTAuthMiddleware) validateToken(ctx context.Context, tokenString string) (*models.AuthenticatedUser, error) {
	opts := []jwt.ParserOption{jwt.WithLeeway(30 * time.Second)}
	if j.config.ExpectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.ExpectedIssuer))
	}
	if j.config.ExpectedAudience != "" {
		opts = append(opts, jwt.WithAudience(j.config.ExpectedAudience))
	}

	var keyFunc jwt.Keyfunc
	switch j.config.Mode {
	case config.AuthModeHS256:
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			return []byte(j.config.Secret), nil
		}
	default:
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
		keyFunc = func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, fmt.Errorf("missing 'kid' in token header")
			}
			return j.publicKey(ctx, kid)
		}
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.UserClaims{}, keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("subject claim is missing")
	}

	return models.NewAuthenticatedUser(claims), nil
}

// publicKey returns the cached key for kid, refreshing the key set once when it is unknown
func (j *JWTAuthMiddleware) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, found := j.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	j.fetchMu.Lock()
	defer j.fetchMu.Unlock()

	// Another request may have refreshed the set while we waited.
	if key, found := j.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}

	slog.Info("Key not found, refreshing JWKS", "kid", kid)
	if err := j.fetchJWKS(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
	}
	if key, found := j.keys.Get(kid); found {
		return key.(*rsa.PublicKey), nil
	}
	return nil, fmt.Errorf("no public key found for kid: %s", kid)
}

// fetchJWKS fetches the JWKS from the configured endpoint
func (j *JWTAuthMiddleware) fetchJWKS(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.config.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	var jwks JWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	loaded := 0
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || (key.Use != "" && key.Use != "sig") {
			continue
		}
		publicKey, err := buildRSAPublicKey(key.N, key.E)
		if err != nil {
			slog.Warn("Failed to build RSA public key", "kid", key.Kid, "error", err)
			continue
		}
		j.keys.Set(key.Kid, publicKey, cache.DefaultExpiration)
		loaded++
	}
	if loaded == 0 {
		return errors.New("JWKS contains no usable signing keys")
	}

	slog.Info("Successfully fetched JWKS", "keys_count", loaded)
	return nil
}

// buildRSAPublicKey constructs an RSA public key from modulus and exponent
func buildRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 2 {
		return nil, fmt.Errorf("invalid exponent")
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// shouldSkipAuth determines if authentication should be skipped for this path
func shouldSkipAuth(path string) bool {
	return path == "/health" || path == "/metrics"
}
