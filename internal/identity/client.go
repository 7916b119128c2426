// Package identity talks to the SSO provider (Ory Kratos) that backs the
// operator bypass on the demo deployment. Only session validation is needed
// server-side: the operator logs in against the provider directly and hands
// us the session token as an assertion header.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	publicBaseURL string
	httpClient    *http.Client
}

type Identity struct {
	ID     string         `json:"id"`
	Traits map[string]any `json:"traits"`
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("identity: http %d: %s", e.StatusCode, msg)
}

func New(publicBaseURL string) (*Client, error) {
	publicBaseURL = strings.TrimSpace(publicBaseURL)
	publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	if publicBaseURL == "" {
		return nil, errors.New("identity: missing public base url")
	}
	u, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, errors.New("identity: invalid public base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("identity: invalid public base url scheme")
	}
	if u.Host == "" {
		return nil, errors.New("identity: invalid public base url host")
	}
	return &Client{
		publicBaseURL: publicBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Whoami resolves a session token to the identity it belongs to. A
// non-2xx response comes back as *HTTPError so callers can tell an
// invalid session from a transport failure.
func (c *Client) Whoami(ctx context.Context, sessionToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.publicBaseURL+"/sessions/whoami", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-Token", sessionToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Identity{}, readHTTPError(resp)
	}

	var out struct {
		Identity Identity `json:"identity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, err
	}
	if out.Identity.ID == "" {
		return Identity{}, errors.New("identity: missing identity id")
	}
	return out.Identity, nil
}

// StringTrait returns a non-empty string trait by key.
func (id Identity) StringTrait(key string) (string, bool) {
	v, ok := id.Traits[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func readHTTPError(resp *http.Response) error {
	const maxBody = 4096
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    string(b),
	}
}
