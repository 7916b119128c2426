// Package apiclient is the in-process client SDK for the medialoom API.
// It augments outgoing requests with the stored demo admin key and turns
// gate denials into typed notifications UI layers can subscribe to.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const adminKeyHeader = "X-Demo-Admin-Key"

type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeyStore
	notifier   *Notifier
}

// HTTPError is any non-2xx response. The body is retained so callers and
// the denial detector can inspect it.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apiclient: http %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("apiclient: missing base url")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("apiclient: invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		keys:       NewMemoryKeyStore(),
		notifier:   NewNotifier(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithKeyStore(ks KeyStore) Option {
	return func(c *Client) { c.keys = ks }
}

// Notifier returns the denial notification channel for UI subscription.
func (c *Client) Notifier() *Notifier {
	return c.notifier
}

// Keys returns the client's admin key store.
func (c *Client) Keys() KeyStore {
	return c.keys
}

// do issues one request: the augmenter attaches the stored admin key if one
// is present, the detector inspects error responses on the way back. A
// non-2xx status returns *HTTPError; out is decoded only on success.
func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.augment(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: respBody}
		c.detectDenial(path, httpErr)
		return httpErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// augment attaches the stored admin key. No key means no header, never an
// empty value.
func (c *Client) augment(req *http.Request) {
	if key, ok := c.keys.Get(); ok {
		req.Header.Set(adminKeyHeader, key)
	}
}
