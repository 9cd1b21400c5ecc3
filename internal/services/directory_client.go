package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/CyberwizD/Distributed-Notification-System/services/notification_service/internal/models"
)

const (
	userFields = `_id name email role createdAt updatedAt`

	getUserByIDQuery = `query GetUserById($id: String!) {
  getUserById(id: $id) { ` + userFields + ` }
}`
	getUsersByRoleQuery = `query GetUsersByRole($role: String!) {
  getUsersByRole(role: $role) { ` + userFields + ` }
}`
	getAllUsersQuery = `query GetAllUsers {
  getAllUsers { ` + userFields + ` }
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// statusError is a non-200 answer from the directory service.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory service returned %d", e.code)
}

func isUnauthorized(err error) bool {
	var se *statusError
	return errors.As(err, &se) && (se.code == http.StatusUnauthorized || se.code == http.StatusForbidden)
}

func isClientError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

// postGraphQL sends one GraphQL operation and decodes data into dst.
func postGraphQL(ctx context.Context, client *http.Client, endpoint, token string, req graphQLRequest, dst any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode directory response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("directory service error: %s", strings.Join(msgs, "; "))
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.New("directory service returned no data")
	}
	return json.Unmarshal(envelope.Data, dst)
}

// TokenSource hands out bearer tokens for the directory service.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// DirectoryClient queries the identity service over GraphQL.
type DirectoryClient struct {
	endpoint string
	client   *http.Client
	tokens   TokenSource
}

func NewDirectoryClient(endpoint string, timeout time.Duration, tokens TokenSource) *DirectoryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DirectoryClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		tokens: tokens,
	}
}

// FetchUser returns ErrUserNotFound when the directory knows no such user.
func (c *DirectoryClient) FetchUser(ctx context.Context, id string) (*models.DirectoryEntry, error) {
	var data struct {
		GetUserByID *models.DirectoryEntry `json:"getUserById"`
	}
	if err := c.query(ctx, graphQLRequest{Query: getUserByIDQuery, Variables: map[string]any{"id": id}}, &data); err != nil {
		return nil, err
	}
	if data.GetUserByID == nil || data.GetUserByID.ID == "" {
		return nil, ErrUserNotFound
	}
	return data.GetUserByID, nil
}

func (c *DirectoryClient) FetchUsersByRole(ctx context.Context, role models.Role) ([]models.DirectoryEntry, error) {
	var data struct {
		GetUsersByRole []models.DirectoryEntry `json:"getUsersByRole"`
	}
	if err := c.query(ctx, graphQLRequest{Query: getUsersByRoleQuery, Variables: map[string]any{"role": string(role)}}, &data); err != nil {
		return nil, err
	}
	return data.GetUsersByRole, nil
}

func (c *DirectoryClient) FetchAllUsers(ctx context.Context) ([]models.DirectoryEntry, error) {
	var data struct {
		GetAllUsers []models.DirectoryEntry `json:"getAllUsers"`
	}
	if err := c.query(ctx, graphQLRequest{Query: getAllUsersQuery}, &data); err != nil {
		return nil, err
	}
	return data.GetAllUsers, nil
}

// query attaches a token and retries once with a fresh one when the
// directory rejects it.
func (c *DirectoryClient) query(ctx context.Context, req graphQLRequest, dst any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		err = postGraphQL(ctx, c.client, c.endpoint, token, req, dst)
		if err == nil {
			return nil
		}
		if !isUnauthorized(err) || attempt == 1 {
			return err
		}
		c.tokens.Invalidate()
	}
	return nil
}
