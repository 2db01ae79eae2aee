package site

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/workerpool"
)

// PredefinedUpdateSiteID and UploadSiteID are the registry's reserved ids
// (spec §3).
const (
	PredefinedUpdateSiteID = "default"
	UploadSiteID           = "_upload"
)

// xmlRegistry is the persisted document shape (spec §6, "XML-like
// document ... ordered list of <site> entries, each carrying id and url").
type xmlRegistry struct {
	XMLName xml.Name     `xml:"sites"`
	Sites   []xmlSiteRef `xml:"site"`
}

type xmlSiteRef struct {
	ID                 string `xml:"id"`
	URL                string `xml:"url"`
	ConnectionCheckURL string `xml:"connectionCheckUrl,omitempty"`
	Legacy             bool   `xml:"legacyDefault,omitempty"`
}

// Registry is the ordered, persistent collection of sites.
type Registry struct {
	mu        sync.RWMutex
	path      string
	order     []string
	sites     map[string]*Site
	fetcher   *fetch.Fetcher
	validator func(siteID string) collab.SignatureValidator
	defaultURL string
}

// NewRegistry creates a registry persisted at <home>/sites.xml. validatorFor
// resolves the signature validator bound to a given site id; it may be nil
// if no site ever needs signature verification. defaultURL is the built-in
// URL used to construct the default site when absent.
func NewRegistry(home string, fetcher *fetch.Fetcher, validatorFor func(siteID string) collab.SignatureValidator, defaultURL string) *Registry {
	return &Registry{
		path:       filepath.Join(home, "sites.xml"),
		sites:      make(map[string]*Site),
		fetcher:    fetcher,
		validator:  validatorFor,
		defaultURL: defaultURL,
	}
}

// Load reads the persisted registry, dropping legacy-default entries and
// ensuring a `default` site exists (spec §4.6). A missing file is not an
// error: a default registry is synthesized.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading site registry: %w", err)
		}
		r.addLocked(PredefinedUpdateSiteID, r.defaultURL, "")
		return nil
	}

	var doc xmlRegistry
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing site registry: %w", err)
	}

	r.order = nil
	r.sites = make(map[string]*Site)
	for _, ref := range doc.Sites {
		if ref.Legacy {
			continue
		}
		r.addLocked(ref.ID, ref.URL, ref.ConnectionCheckURL)
	}

	if _, ok := r.sites[PredefinedUpdateSiteID]; !ok {
		r.addLocked(PredefinedUpdateSiteID, r.defaultURL, "")
	}
	return nil
}

// Save persists the current ordered site list.
func (r *Registry) Save() error {
	r.mu.RLock()
	doc := xmlRegistry{}
	for _, id := range r.order {
		s := r.sites[id]
		doc.Sites = append(doc.Sites, xmlSiteRef{ID: s.ID, URL: s.URL, ConnectionCheckURL: s.ConnectionCheckURL})
	}
	r.mu.RUnlock()

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling site registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing site registry: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// Add registers a new site, persisting the registry. Returns an error if
// the id is already registered.
func (r *Registry) Add(id, url, connectionCheckURL string) error {
	r.mu.Lock()
	if _, exists := r.sites[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("site %q already registered", id)
	}
	r.addLocked(id, url, connectionCheckURL)
	r.mu.Unlock()
	return r.Save()
}

func (r *Registry) addLocked(id, url, connectionCheckURL string) {
	var validator collab.SignatureValidator
	if r.validator != nil {
		validator = r.validator(id)
	}
	r.sites[id] = New(id, url, connectionCheckURL, r.fetcher, validator)
	r.order = append(r.order, id)
}

// Get returns the site with the given id.
func (r *Registry) Get(id string) (*Site, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[id]
	return s, ok
}

// All returns every registered site in registration order.
func (r *Registry) All() []*Site {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Site, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sites[id])
	}
	return out
}

// RefreshResult is one site's outcome from UpdateAllSites.
type RefreshResult struct {
	SiteID string
	Err    error
}

// UpdateAllSites runs Refresh for every site in parallel on the metadata
// pool and returns once all complete (spec §4.6). When pool is nil, or a
// submission is rejected, that site's Refresh runs inline on the caller's
// goroutine.
func (r *Registry) UpdateAllSites(ctx context.Context, pool *workerpool.Pool, verifySignature bool) []RefreshResult {
	sites := r.All()
	results := make([]RefreshResult, len(sites))
	var wg sync.WaitGroup

	for i, s := range sites {
		i, s := i, s
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = RefreshResult{SiteID: s.ID, Err: s.Refresh(ctx, verifySignature)}
		}
		if pool == nil || !pool.Submit(task) {
			task()
		}
	}
	wg.Wait()
	return results
}
