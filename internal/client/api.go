// Package client implements the HTTP client for the textshr API. The
// session cookie is held in a jar, so one Client keeps one identity for
// the lifetime of the process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/dmitrijs2005/textshr/internal/common"
)

// Text is a retrieved record.
type Text struct {
	Text        string `json:"text"`
	Size        int64  `json:"size"`
	Summary     string `json:"summary"`
	OnlyOneRead bool   `json:"only_one_read"`
}

// CreateOptions carries the optional fields of a new record.
type CreateOptions struct {
	TTL         time.Duration
	OnlyOneRead bool
	Password    string
	Summary     string
}

type createPayload struct {
	Text        string `json:"text"`
	TTLSeconds  int64  `json:"ttl_seconds"`
	OnlyOneRead bool   `json:"only_one_read"`
	Password    string `json:"password,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

type keyPayload struct {
	Key string `json:"key"`
}

type getPayload struct {
	Text
	PasswordRequired bool `json:"password_required"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Client talks to a textshr server.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client for the server at baseURL.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// Create submits text and returns the generated key.
func (c *Client) Create(ctx context.Context, text string, opts CreateOptions) (string, error) {
	var out keyPayload
	err := c.call(ctx, http.MethodPost, "/api/texts", createPayload{
		Text:        text,
		TTLSeconds:  int64(opts.TTL.Seconds()),
		OnlyOneRead: opts.OnlyOneRead,
		Password:    opts.Password,
		Summary:     opts.Summary,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Key, nil
}

// Get retrieves the text under key. When the record is password-gated it
// returns common.ErrPasswordRequired; retrieve through Verify instead.
func (c *Client) Get(ctx context.Context, key string) (*Text, error) {
	var out getPayload
	if err := c.call(ctx, http.MethodGet, "/api/texts/"+key, nil, &out); err != nil {
		return nil, err
	}
	if out.PasswordRequired {
		return nil, common.ErrPasswordRequired
	}
	return &out.Text, nil
}

// Verify retrieves a password-gated text.
func (c *Client) Verify(ctx context.Context, key, password string) (*Text, error) {
	var out getPayload
	err := c.call(ctx, http.MethodPost, "/api/texts/"+key+"/verify", map[string]string{"password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Text, nil
}

// Update replaces the record under key with the full new state.
func (c *Client) Update(ctx context.Context, key, text string, opts CreateOptions) error {
	return c.call(ctx, http.MethodPut, "/api/texts/"+key, createPayload{
		Text:        text,
		TTLSeconds:  int64(opts.TTL.Seconds()),
		OnlyOneRead: opts.OnlyOneRead,
		Password:    opts.Password,
		Summary:     opts.Summary,
	}, nil)
}

// Delete removes the record under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.call(ctx, http.MethodDelete, "/api/texts/"+key, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		return common.ErrNoMatch
	default:
		var ep errorPayload
		if err := json.NewDecoder(resp.Body).Decode(&ep); err == nil && ep.Error != "" {
			return fmt.Errorf("server: %s (status %d)", ep.Error, resp.StatusCode)
		}
		return fmt.Errorf("server: unexpected status %d", resp.StatusCode)
	}
}
