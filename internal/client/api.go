package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vaultpass/consumer-secrets/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match common statuses with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// APIClient calls the consumer secrets HTTP API with a bearer token.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates a new APIClient. A nil httpClient gets a client with a 30s timeout.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

const secretsPath = "/api/v1/consumer-secrets"

// ListConsumerSecrets fetches the caller's secrets in orgID.
func (c *APIClient) ListConsumerSecrets(ctx context.Context, orgID string) ([]model.ConsumerSecret, error) {
	var resp model.ConsumerSecretListResponse
	if err := c.do(ctx, http.MethodGet, secretsPath+"?"+orgQuery(orgID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.ConsumerSecrets, nil
}

// GetConsumerSecret fetches one secret.
func (c *APIClient) GetConsumerSecret(ctx context.Context, id string) (*model.ConsumerSecret, error) {
	return c.single(ctx, http.MethodGet, secretPath(id), nil)
}

// CreateConsumerSecret stores a new ciphertext bundle in orgID.
func (c *APIClient) CreateConsumerSecret(ctx context.Context, orgID string, req model.CreateConsumerSecretRequest) (*model.ConsumerSecret, error) {
	return c.single(ctx, http.MethodPost, secretsPath+"?"+orgQuery(orgID), req)
}

// UpdateConsumerSecret sends a partial patch.
func (c *APIClient) UpdateConsumerSecret(ctx context.Context, id string, patch model.ConsumerSecretPatch) (*model.ConsumerSecret, error) {
	return c.single(ctx, http.MethodPatch, secretPath(id), patch)
}

// DeleteConsumerSecret removes a secret and returns its last state.
func (c *APIClient) DeleteConsumerSecret(ctx context.Context, id string) (*model.ConsumerSecret, error) {
	return c.single(ctx, http.MethodDelete, secretPath(id), nil)
}

func (c *APIClient) single(ctx context.Context, method, path string, body any) (*model.ConsumerSecret, error) {
	var resp model.ConsumerSecretResponse
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp.ConsumerSecret, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func orgQuery(orgID string) string {
	return url.Values{"orgId": {orgID}}.Encode()
}

func secretPath(id string) string {
	return secretsPath + "/" + url.PathEscape(id)
}
