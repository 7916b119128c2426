package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

type DemoStatus struct {
	IsDemoEnvironment  bool   `json:"isDemoEnvironment"`
	WriteAccessEnabled bool   `json:"writeAccessEnabled"`
	Message            string `json:"message"`
}

type UnlockResult struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expiresInMinutes"`
	ExpiresAt        string `json:"expiresAt"`
	AdminKey         string `json:"adminKey"`
}

func (c *Client) DemoStatus(ctx context.Context) (DemoStatus, error) {
	var status DemoStatus
	if err := c.do(ctx, http.MethodGet, "/demo/status", nil, &status); err != nil {
		return DemoStatus{}, err
	}
	return status, nil
}

// UnlockWriteAccess exchanges a TOTP code for an ephemeral admin key. On
// success the key is stored and attached to every subsequent request.
func (c *Client) UnlockWriteAccess(ctx context.Context, code string) (UnlockResult, error) {
	var result UnlockResult
	path := "/demo/unlock?code=" + url.QueryEscape(code)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return UnlockResult{}, err
	}
	if result.AdminKey != "" {
		c.keys.Set(result.AdminKey)
	}
	return result, nil
}

// LockWriteAccess revokes the server-side key and clears the stored one.
// The stored key is cleared even though the server call is what revokes
// access; a failed call leaves the key in place so the caller can retry.
func (c *Client) LockWriteAccess(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/demo/lock", nil, nil); err != nil {
		return err
	}
	c.keys.Clear()
	return nil
}

// ClearStoredKey drops the stored admin key without contacting the server.
// Logout flows use it so a session-scoped key does not outlive the session.
func (c *Client) ClearStoredKey() {
	c.keys.Clear()
}
