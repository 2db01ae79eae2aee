// Package api provides a thin JSON-over-HTTP client for the Update Center's
// status API (spec §4.11), for use by the web UI or other out-of-process
// callers. Struct tags mirror internal/statusapi's wire shapes exactly.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client calls an Update Center's status API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ConnectionStatus is the wire shape of GET /connectionStatus.
type ConnectionStatus struct {
	Internet   string `json:"internet"`
	UpdateSite string `json:"updatesite"`
}

// InstallJob is one entry in an InstallStatus response.
type InstallJob struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Title           string `json:"title"`
	InstallStatus   string `json:"installStatus"`
	RequiresRestart bool   `json:"requiresRestart"`
	CorrelationID   string `json:"correlationId,omitempty"`
}

// InstallStatus is the wire shape of GET /installStatus.
type InstallStatus struct {
	State string       `json:"state"`
	Jobs  []InstallJob `json:"jobs"`
}

// Snapshot is one entry of GET /incompleteInstallStatus.
type Snapshot struct {
	PluginName string `json:"pluginName"`
	Version    string `json:"version"`
	State      string `json:"state"`
	Message    string `json:"message,omitempty"`
}

// NewClient returns a Client for the status API rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ConnectionStatus calls GET /connectionStatus?siteId=siteID. An empty
// siteID uses the server's default site.
func (c *Client) ConnectionStatus(siteID string) (*ConnectionStatus, error) {
	u := c.baseURL + "/connectionStatus"
	if siteID != "" {
		u += "?siteId=" + url.QueryEscape(siteID)
	}

	var out ConnectionStatus
	if err := c.getJSON(u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InstallStatus calls GET /installStatus?correlationId=correlationID.
func (c *Client) InstallStatus(correlationID string) (*InstallStatus, error) {
	u := c.baseURL + "/installStatus"
	if correlationID != "" {
		u += "?correlationId=" + url.QueryEscape(correlationID)
	}

	var out InstallStatus
	if err := c.getJSON(u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IncompleteInstallStatus calls GET /incompleteInstallStatus.
func (c *Client) IncompleteInstallStatus() (map[string]Snapshot, error) {
	out := map[string]Snapshot{}
	if err := c.getJSON(c.baseURL+"/incompleteInstallStatus", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upgrade calls POST /upgrade?siteId=siteID&plugin=pluginName.
func (c *Client) Upgrade(siteID, pluginName string) (int64, error) {
	u := fmt.Sprintf("%s/upgrade?siteId=%s&plugin=%s", c.baseURL, url.QueryEscape(siteID), url.QueryEscape(pluginName))
	var out struct {
		JobID int64 `json:"jobId"`
	}
	if err := c.postJSON(u, &out); err != nil {
		return 0, err
	}
	return out.JobID, nil
}

// Downgrade calls POST /downgrade?siteId=siteID&plugin=pluginName.
func (c *Client) Downgrade(siteID, pluginName string) (int64, error) {
	u := fmt.Sprintf("%s/downgrade?siteId=%s&plugin=%s", c.baseURL, url.QueryEscape(siteID), url.QueryEscape(pluginName))
	var out struct {
		JobID int64 `json:"jobId"`
	}
	if err := c.postJSON(u, &out); err != nil {
		return 0, err
	}
	return out.JobID, nil
}

// SafeRestart calls POST /safeRestart.
func (c *Client) SafeRestart() (jobID int64, scheduled bool, err error) {
	var out struct {
		JobID     int64 `json:"jobId"`
		Scheduled bool  `json:"scheduled"`
	}
	if err := c.postJSON(c.baseURL+"/safeRestart", &out); err != nil {
		return 0, false, err
	}
	return out.JobID, out.Scheduled, nil
}

// CancelRestart calls POST /cancelRestart.
func (c *Client) CancelRestart() (bool, error) {
	var out struct {
		Canceled bool `json:"canceled"`
	}
	if err := c.postJSON(c.baseURL+"/cancelRestart", &out); err != nil {
		return false, err
	}
	return out.Canceled, nil
}

func (c *Client) getJSON(u string, out any) error {
	resp, err := c.httpClient.Get(u)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) postJSON(u string, out any) error {
	resp, err := c.httpClient.Post(u, "application/json", nil)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, out any) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
