package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the HomeAssistant REST API. The bridge only ever invokes
// scripts (the IR blaster is wrapped in one script per remote button), so the
// surface is deliberately small.
type Client struct {
	address    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new HomeAssistant client
func NewClient(address, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		address: strings.TrimRight(address, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping verifies the API is reachable and the token is accepted. Called at
// startup so a bad address or token fails the process instead of the first
// command hours later.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.request(ctx, "GET", "", nil)
	if err != nil {
		return fmt.Errorf("failed to reach HomeAssistant API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HomeAssistant API returned %d: %s", resp.StatusCode, string(body))
	}

	log.Info().Str("address", c.address).Msg("Connected to HomeAssistant")
	return nil
}

// CallScript runs a script entity via the script.turn_on service.
func (c *Client) CallScript(ctx context.Context, entityID string) error {
	payload, err := json.Marshal(map[string]string{"entity_id": entityID})
	if err != nil {
		return err
	}

	resp, err := c.request(ctx, "POST", "services/script/turn_on", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to run script %s: %d %s", entityID, resp.StatusCode, string(body))
	}

	log.Debug().Str("script", entityID).Msg("Script invoked")
	return nil
}

// Close closes the client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Address returns the HomeAssistant address
func (c *Client) Address() string {
	return c.address
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/api/%s", c.address, path)
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
