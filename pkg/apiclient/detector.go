package apiclient

import (
	"encoding/json"
	"net/http"
)

// demoBlockedError is the marker distinguishing a gate denial from any
// other 403. It must match the server's fixed denial body exactly.
const demoBlockedError = "Write operations are disabled in demo mode"

// WriteBlocked is published when the server's demo gate denies a write.
type WriteBlocked struct {
	BlockedOperation string
	Path             string
}

// detectDenial publishes a WriteBlocked notification when the error is the
// gate's canonical denial. The caller still receives the original error
// unchanged; detection is a side effect, never a rewrite.
func (c *Client) detectDenial(path string, httpErr *HTTPError) {
	if httpErr.StatusCode != http.StatusForbidden {
		return
	}
	var body struct {
		Error            string `json:"error"`
		BlockedOperation string `json:"blockedOperation"`
	}
	if err := json.Unmarshal(httpErr.Body, &body); err != nil {
		return
	}
	if body.Error != demoBlockedError {
		return
	}
	c.notifier.Publish(WriteBlocked{
		BlockedOperation: body.BlockedOperation,
		Path:             path,
	})
}
