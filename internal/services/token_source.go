package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/pkg/retry"
)

const loginMutation = `mutation Login($email: String!, $password: String!) {
  login(email: $email, password: $password) { access_token }
}`

// LoginTokenSource obtains directory tokens through the login mutation and
// caches them until the TTL runs out or Invalidate is called.
type LoginTokenSource struct {
	endpoint string
	email    string
	password string
	ttl      time.Duration
	client   *http.Client
	retryCfg retry.Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewLoginTokenSource(endpoint, email, password string, ttl, timeout time.Duration, retryCfg retry.Config, logger *slog.Logger) *LoginTokenSource {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LoginTokenSource{
		endpoint: endpoint,
		email:    email,
		password: password,
		ttl:      ttl,
		client:   &http.Client{Timeout: timeout},
		retryCfg: retryCfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Token returns the cached token or logs in again.
func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}

	var token string
	err := retry.Do(ctx, s.retryCfg, func() error {
		t, err := s.login(ctx)
		if err != nil {
			s.logger.Warn("directory login failed", slog.Any("error", err))
			if isClientError(err) {
				return retry.Permanent(err)
			}
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	s.token = token
	s.expires = s.now().Add(s.ttl)
	return token, nil
}

// Invalidate drops the cached token.
func (s *LoginTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expires = time.Time{}
	s.mu.Unlock()
}

func (s *LoginTokenSource) login(ctx context.Context) (string, error) {
	var data struct {
		Login *struct {
			AccessToken string `json:"access_token"`
		} `json:"login"`
	}
	req := graphQLRequest{
		Query:     loginMutation,
		Variables: map[string]any{"email": s.email, "password": s.password},
	}
	if err := postGraphQL(ctx, s.client, s.endpoint, "", req, &data); err != nil {
		return "", err
	}
	if data.Login == nil || data.Login.AccessToken == "" {
		return "", fmt.Errorf("invalid login response: missing access_token")
	}
	return data.Login.AccessToken, nil
}
