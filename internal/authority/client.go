// Package authority is a client for the login service's internal user API.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go-messenger/internal/model"
	"go-messenger/internal/trust"
)

type Client struct {
	baseURL *url.URL
	gate    *trust.Gate
	http    *http.Client
}

func New(baseURL string, gate *trust.Gate, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse login service url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("login service url must be absolute: %q", baseURL)
	}
	if gate == nil {
		return nil, errors.New("authority client requires a trust gate")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{baseURL: parsed, gate: gate, http: httpClient}, nil
}

func (c *Client) UserExists(ctx context.Context, userID int64) (bool, error) {
	var body model.UserExistence
	if err := c.get(ctx, "/internal/v1/auth/validate-user/"+strconv.FormatInt(userID, 10), &body, nil); err != nil {
		return false, err
	}

	return body.Exists, nil
}

func (c *Client) Username(ctx context.Context, userID int64) (string, bool, error) {
	info, err := c.UserInfo(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if info.Username == "" {
		return "", false, nil
	}

	return info.Username, true, nil
}

// UserInfo returns model.ErrUserNotFound on 404; any other failure wraps
// model.ErrUpstreamUnavailable.
func (c *Client) UserInfo(ctx context.Context, userID int64) (model.UserInfo, error) {
	var info model.UserInfo
	if err := c.get(ctx, "/internal/v1/auth/user-info/"+strconv.FormatInt(userID, 10), &info, model.ErrUserNotFound); err != nil {
		return model.UserInfo{}, err
	}

	return info, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// get returns notFound on 404 when it is set; any other non-2xx status is
// an upstream failure.
func (c *Client) get(ctx context.Context, path string, out any, notFound error) error {
	endpoint := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.gate.Stamp(req.Header, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode == http.StatusNotFound && notFound != nil {
			return notFound
		}
		return fmt.Errorf("%w: %s: status %d", model.ErrUpstreamUnavailable, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", model.ErrUpstreamUnavailable, path, err)
	}
	if !env.Success || len(env.Data) == 0 {
		return fmt.Errorf("%w: %s: unsuccessful response", model.ErrUpstreamUnavailable, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: decode data: %v", model.ErrUpstreamUnavailable, path, err)
	}

	return nil
}
