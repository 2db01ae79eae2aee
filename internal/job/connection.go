package job

import (
	"context"
	"sync"

	"github.com/Jsparrow/jenkins/internal/connstatus"
	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/site"
)

// runConnectionCheck implements the ConnectionCheckJob state machine (spec
// §4.9): internet and update-site channels move independently through
// PRECHECK -> UNCHECKED -> (CHECKING|SKIPPED) -> (OK|FAILED). The internet
// probe runs on its own goroutine, in parallel with the update-site probe,
// which runs inline; the internet probe is not submitted to the metadata
// pool itself.
func (s *Scheduler) runConnectionCheck(ctx context.Context, r *Record) {
	if r.SiteID == site.UploadSiteID {
		s.transition(r, Status{Kind: Success})
		return
	}

	s.setChannel(r, func(c *connstatus.Channels) { c.Internet = connstatus.Unchecked; c.UpdateSite = connstatus.Unchecked })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.checkInternet(ctx, r)
	}()

	s.checkUpdateSite(ctx, r)
	wg.Wait()

	if r.Channels.AllFailed() {
		// One re-probe before giving up, per spec §4.11's retry rule applied
		// at the job level as well as the Status API layer.
		s.checkUpdateSite(ctx, r)
	}

	s.transition(r, Status{Kind: Success})
}

// checkInternet probes the site's optional connection-check URL (spec §3/§6:
// a general-purpose reachability probe, distinct from the site's own
// catalog). Absent/unset, the channel is SKIPPED rather than assuming no
// connectivity.
func (s *Scheduler) checkInternet(ctx context.Context, r *Record) {
	probeURL, ok := s.siteConnectionCheckURL(r.SiteID)
	if !ok || probeURL == "" {
		s.setChannel(r, func(c *connstatus.Channels) { c.Internet = connstatus.Skipped })
		return
	}

	s.setChannel(r, func(c *connstatus.Channels) { c.Internet = connstatus.Checking })
	f := s.deps.Fetcher
	if f == nil {
		f = fetch.New(nil)
	}
	resp, err := f.Open(ctx, site.ConnectionCheckProbeURL(probeURL), fetch.Options{})
	status := connstatus.OK
	if err != nil {
		status = connstatus.Failed
	} else {
		resp.Body.Close()
	}
	s.setChannel(r, func(c *connstatus.Channels) { c.Internet = status })
}

// checkUpdateSite probes the site's own catalog URL (spec §4.9/§8 scenario
// 4). The channel is SKIPPED only when no catalog URL resolves for the site
// id (no SiteURLLookup wired, or the site is unknown).
func (s *Scheduler) checkUpdateSite(ctx context.Context, r *Record) {
	siteURL, ok := s.siteCatalogURL(r.SiteID)
	if !ok || siteURL == "" {
		s.setChannel(r, func(c *connstatus.Channels) { c.UpdateSite = connstatus.Skipped })
		return
	}

	s.setChannel(r, func(c *connstatus.Channels) { c.UpdateSite = connstatus.Checking })
	f := s.deps.Fetcher
	if f == nil {
		f = fetch.New(nil)
	}
	resp, err := f.Open(ctx, site.ConnectionCheckProbeURL(siteURL), fetch.Options{})
	status := connstatus.OK
	if err != nil {
		status = connstatus.Failed
	} else {
		resp.Body.Close()
	}
	s.setChannel(r, func(c *connstatus.Channels) { c.UpdateSite = status })
}

// siteConnectionCheckURL is overridden in tests via deps.SiteLookup; the
// default looks nothing up (SKIPPED) when no registry is wired.
func (s *Scheduler) siteConnectionCheckURL(siteID string) (string, bool) {
	if s.deps.SiteLookup == nil {
		return "", false
	}
	return s.deps.SiteLookup(siteID)
}

// siteCatalogURL is overridden in tests via deps.SiteURLLookup; the default
// looks nothing up (SKIPPED) when no registry is wired.
func (s *Scheduler) siteCatalogURL(siteID string) (string, bool) {
	if s.deps.SiteURLLookup == nil {
		return "", false
	}
	return s.deps.SiteURLLookup(siteID)
}

func (s *Scheduler) setChannel(r *Record, mutate func(*connstatus.Channels)) {
	r.mu.Lock()
	mutate(&r.Channels)
	snapshot := r.Channels
	r.mu.Unlock()

	if s.deps.ConnStatus != nil {
		s.deps.ConnStatus.Internet(r.SiteID, snapshot.Internet)
		s.deps.ConnStatus.UpdateSite(r.SiteID, snapshot.UpdateSite)
	}
}
