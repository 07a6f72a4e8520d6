package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUserNotFound is returned when no auth user has the given email.
var ErrUserNotFound = errors.New("user not found")

// AdminClient provides access to Supabase Admin API for user management.
// The seeder uses it to create the owner of the demo project.
type AdminClient struct {
	supabaseURL string
	serviceKey  string
	httpClient  *http.Client
}

// NewAdminClient creates a new Supabase Admin API client.
// Requires the service role key (SUPABASE_KEY) for elevated permissions.
func NewAdminClient(supabaseURL, serviceKey string) *AdminClient {
	return &AdminClient{
		supabaseURL: supabaseURL,
		serviceKey:  serviceKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateUserRequest is the payload for creating a new user
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

// UserResponse is a user returned by the Admin API
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type listUsersResponse struct {
	Users []UserResponse `json:"users"`
}

// EnsureUser returns the ID of the user with email, creating a confirmed
// user with password when none exists.
func (c *AdminClient) EnsureUser(ctx context.Context, email, password string) (string, error) {
	id, err := c.FindUserIDByEmail(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}
	return c.CreateUser(ctx, email, password)
}

// FindUserIDByEmail searches the first page of users for email.
func (c *AdminClient) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users", nil, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	var list listUsersResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("decode list response: %w", err)
	}
	for _, user := range list.Users {
		if user.Email == email {
			return user.ID, nil
		}
	}
	return "", ErrUserNotFound
}

// CreateUser creates a confirmed user and returns its UUID.
func (c *AdminClient) CreateUser(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(CreateUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return "", fmt.Errorf("marshal create request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", payload, http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	var user UserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return user.ID, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload []byte, okStatus ...int) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.supabaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	for _, s := range okStatus {
		if resp.StatusCode == s {
			return body, nil
		}
	}
	return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
}
