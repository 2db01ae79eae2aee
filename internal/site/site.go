// Package site implements the Update Site, Site Registry, and Metadata
// Merger (spec §4.5–§4.7): one remote signed JSON catalog per site, an
// ordered persistent collection of sites, and the first-site-wins merge of
// their plugin lists into a single view.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/envelope"
	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/logging"
)

var log = logging.L("site")

const updateCenterSuffix = "update-center.json"

// PluginEntry describes one plugin release published by a site.
type PluginEntry struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Title        string   `json:"title"`
	Categories   []string `json:"categories,omitempty"`
	URL          string   `json:"url"`
	SHA1         string   `json:"sha1,omitempty"`
	SHA256       string   `json:"sha256,omitempty"`
	SHA512       string   `json:"sha512,omitempty"`
	SourceID     string   `json:"sourceId"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// CoreEntry describes the core upgrade a site publishes, if any.
type CoreEntry struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	SHA1    string `json:"sha1,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
	SHA512  string `json:"sha512,omitempty"`
}

// Data is the payload of one successful site refresh, replaced atomically.
type Data struct {
	Core    *CoreEntry             `json:"core,omitempty"`
	Plugins map[string]PluginEntry `json:"plugins"`
}

// wireDocument is the shape update-center.json is expected to unmarshal
// into, after envelope stripping.
type wireDocument struct {
	ID      string                 `json:"id"`
	Core    *CoreEntry             `json:"core,omitempty"`
	Plugins map[string]PluginEntry `json:"plugins"`
}

// MalformedJSON reports that the stripped envelope did not contain valid
// site JSON.
type MalformedJSON struct {
	Err error
}

func (e *MalformedJSON) Error() string { return "malformed site JSON: " + e.Err.Error() }
func (e *MalformedJSON) Unwrap() error { return e.Err }

// SignatureRejected reports that the bound SignatureValidator refused the
// site's payload.
type SignatureRejected struct {
	SiteID string
}

func (e *SignatureRejected) Error() string {
	return "signature rejected for site " + e.SiteID
}

// Site is one remote update catalog.
type Site struct {
	ID                 string
	URL                string
	ConnectionCheckURL string

	validator collab.SignatureValidator
	fetcher   *fetch.Fetcher

	data          atomic.Pointer[Data]
	dataTimestamp atomic.Int64 // unix nanos
}

// New constructs a Site bound to a fetcher and an optional signature
// validator (nil disables signature verification for this site, equivalent
// to the noSignatureCheck escape hatch scoped to one site).
func New(id, url, connectionCheckURL string, fetcher *fetch.Fetcher, validator collab.SignatureValidator) *Site {
	return &Site{
		ID:                 id,
		URL:                url,
		ConnectionCheckURL: connectionCheckURL,
		fetcher:            fetcher,
		validator:          validator,
	}
}

// BaseURL is the site URL with the update-center.json suffix stripped.
func (s *Site) BaseURL() string {
	return strings.TrimSuffix(s.URL, updateCenterSuffix)
}

// Refresh fetches and parses the site's catalog, replacing Data atomically
// on success. The document is unwrapped from its HTML postMessage envelope
// first, falling back to the JSONP envelope (spec §6).
func (s *Site) Refresh(ctx context.Context, verifySignature bool) error {
	resp, err := s.fetcher.Open(ctx, s.URL, fetch.Options{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading site %s body: %w", s.ID, err)
	}
	body := string(raw)

	jsonText, err := envelope.ExtractPostMessage(body)
	if err != nil {
		jsonText, err = envelope.ExtractJSONP(body)
		if err != nil {
			return err
		}
	}

	if verifySignature && s.validator != nil {
		outcome, verr := s.validator.Verify([]byte(jsonText))
		if verr != nil || outcome == collab.SignatureError {
			return &SignatureRejected{SiteID: s.ID}
		}
		if outcome == collab.SignatureWarn {
			log.Warn("site signature check warned", "siteId", s.ID)
		}
	}

	var doc wireDocument
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return &MalformedJSON{Err: err}
	}

	data := &Data{Core: doc.Core, Plugins: doc.Plugins}
	for name, p := range data.Plugins {
		p.SourceID = s.ID
		data.Plugins[name] = p
	}

	s.data.Store(data)
	s.dataTimestamp.Store(time.Now().UnixNano())
	log.Info("site refreshed", "siteId", s.ID, "plugins", len(data.Plugins))
	return nil
}

// Invalidate clears the cached data; the next Refresh behaves as a first
// load.
func (s *Site) Invalidate() {
	s.data.Store(nil)
	s.dataTimestamp.Store(0)
}

// DataTimestamp returns the time of the last successful refresh, or the
// zero time if never refreshed.
func (s *Site) DataTimestamp() time.Time {
	ns := s.dataTimestamp.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// MetadataURLFor returns the per-downloadable metadata URL derived from the
// site's base URL (spec §6), or false if the site URL does not end in the
// expected update-center.json suffix.
func (s *Site) MetadataURLFor(downloadableID string) (string, bool) {
	if !strings.HasSuffix(s.URL, updateCenterSuffix) {
		return "", false
	}
	return s.BaseURL() + "updates/" + downloadableID + ".json", true
}

// ConnectionCheckProbeURL appends the ?uctest / &uctest marker spec §6
// requires for connection-check probes.
func ConnectionCheckProbeURL(rawURL string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&uctest"
	}
	return rawURL + "?uctest"
}

// GetPlugin returns the cached entry for a plugin name.
func (s *Site) GetPlugin(name string) (PluginEntry, bool) {
	d := s.data.Load()
	if d == nil {
		return PluginEntry{}, false
	}
	p, ok := d.Plugins[name]
	return p, ok
}

// GetAvailables returns every plugin this site currently publishes.
func (s *Site) GetAvailables() []PluginEntry {
	d := s.data.Load()
	if d == nil {
		return nil
	}
	out := make([]PluginEntry, 0, len(d.Plugins))
	for _, p := range d.Plugins {
		out = append(out, p)
	}
	return out
}

// GetUpdates returns plugins this site publishes at a strictly higher
// version than the caller-supplied installed versions.
func (s *Site) GetUpdates(installed map[string]string) []PluginEntry {
	d := s.data.Load()
	if d == nil {
		return nil
	}
	var out []PluginEntry
	for name, p := range d.Plugins {
		cur, ok := installed[name]
		if !ok {
			continue
		}
		if versionLess(cur, p.Version) {
			out = append(out, p)
		}
	}
	return out
}

// GetCore returns the core upgrade entry this site publishes, if any.
func (s *Site) GetCore() (CoreEntry, bool) {
	d := s.data.Load()
	if d == nil || d.Core == nil {
		return CoreEntry{}, false
	}
	return *d.Core, true
}

// versionLess does a best-effort dotted-numeric comparison, falling back to
// a string comparison of the whole versions when a compared position is
// non-numeric or missing on either side (e.g. "1.0" vs "1.0.1").
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		var aok, bok bool
		if i < len(as) {
			av, aok = parseIntSegment(as[i])
		}
		if i < len(bs) {
			bv, bok = parseIntSegment(bs[i])
		}
		if !aok || !bok {
			return a < b
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

func parseIntSegment(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
