package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fastprodman/coingate/internal/config"
)

// Supabase verifies Supabase-issued access tokens. With a JWT secret it checks
// HS256 signatures locally; otherwise, or when local verification fails and a
// project URL is known, it asks the project's /auth/v1/user endpoint.
type Supabase struct {
	cfg    config.AuthConfig
	client *http.Client
	parser *jwt.Parser
}

func NewSupabase(cfg config.AuthConfig) *Supabase {
	return &Supabase{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

type supabaseClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Supabase) Authenticate(ctx context.Context, token string) (Identity, error) {
	if s.cfg.JWTSecret != "" {
		id, err := s.verifyLocal(token)
		if err == nil || s.cfg.SupabaseURL == "" {
			return id, err
		}
	}

	if s.cfg.SupabaseURL == "" {
		return Identity{}, fmt.Errorf("%w: no verification method configured", ErrUnauthenticated)
	}

	return s.verifyRemote(ctx, token)
}

func (s *Supabase) verifyLocal(token string) (Identity, error) {
	var claims supabaseClaims

	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return Identity{ID: claims.Subject, Role: claims.Role, Email: claims.Email}, nil
}

type supabaseUser struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

func (s *Supabase) verifyRemote(ctx context.Context, token string) (Identity, error) {
	url := strings.TrimRight(s.cfg.SupabaseURL, "/") + "/auth/v1/user"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build user request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if s.cfg.AnonKey != "" {
		req.Header.Set("apikey", s.cfg.AnonKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("call supabase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("%w: supabase answered %d: %s", ErrUnauthenticated, resp.StatusCode, body)
	}

	var u supabaseUser

	err = json.NewDecoder(resp.Body).Decode(&u)
	if err != nil {
		return Identity{}, fmt.Errorf("decode supabase user: %w", err)
	}

	if u.ID == "" {
		return Identity{}, errors.New("supabase user has no id")
	}

	return Identity{ID: u.ID, Role: u.Role, Email: u.Email}, nil
}
