// Package connstatus tracks the internet and update-site connectivity
// channels of a ConnectionCheckJob (spec §3, §4.9) so the Status API can
// render them without re-running the probe.
package connstatus

import (
	"sync"

	"github.com/Jsparrow/jenkins/internal/logging"
)

var log = logging.L("connstatus")

// Status is one of the channel states a ConnectionCheckJob moves through.
type Status string

const (
	PreCheck  Status = "PRECHECK"
	Unchecked Status = "UNCHECKED"
	Checking  Status = "CHECKING"
	Skipped   Status = "SKIPPED"
	OK        Status = "OK"
	Failed    Status = "FAILED"
)

// Channels is the pair of connectivity states tracked per site (spec §3).
type Channels struct {
	Internet   Status `json:"internet"`
	UpdateSite Status `json:"updatesite"`
}

// AllFailed reports whether both channels ended in FAILED, the trigger for
// the Status API's single re-probe (spec §4.11).
func (c Channels) AllFailed() bool {
	return c.Internet == Failed && c.UpdateSite == Failed
}

// Monitor tracks the latest connection-check channels for every site that
// has ever had a ConnectionCheckJob run against it.
type Monitor struct {
	mu       sync.RWMutex
	bySiteID map[string]Channels
}

// NewMonitor creates an empty connection-status monitor.
func NewMonitor() *Monitor {
	return &Monitor{bySiteID: make(map[string]Channels)}
}

// Internet records the internet-probe channel for a site.
func (m *Monitor) Internet(siteID string, s Status) {
	m.update(siteID, func(c *Channels) { c.Internet = s })
}

// UpdateSite records the update-site-probe channel for a site.
func (m *Monitor) UpdateSite(siteID string, s Status) {
	m.update(siteID, func(c *Channels) { c.UpdateSite = s })
}

func (m *Monitor) update(siteID string, mutate func(*Channels)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.bySiteID[siteID]
	mutate(&c)
	m.bySiteID[siteID] = c
	if c.Internet == Failed || c.UpdateSite == Failed {
		log.Warn("connection check degraded", "siteId", siteID, "internet", string(c.Internet), "updatesite", string(c.UpdateSite))
	}
}

// Get returns the current channels for a site.
func (m *Monitor) Get(siteID string) (Channels, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySiteID[siteID]
	return c, ok
}

// Snapshot returns a copy of every tracked site's channels.
func (m *Monitor) Snapshot() map[string]Channels {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Channels, len(m.bySiteID))
	for k, v := range m.bySiteID {
		out[k] = v
	}
	return out
}
