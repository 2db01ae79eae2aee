package job

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/site"
)

func sha256b64(data string) string {
	sum := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}

type countingRuntime struct {
	loadCount atomic.Int32
}

func (c *countingRuntime) DynamicLoad(path string, strict bool, batch []string) error {
	c.loadCount.Add(1)
	return nil
}
func (c *countingRuntime) Start(batch []string) error { return nil }

func waitForTerminal(t *testing.T, r *Record, timeout time.Duration) Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st := r.Status()
		if st.Kind.IsTerminal() {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach a terminal status in time (last: %v)", r.ID, r.Status())
	return Status{}
}

func TestSecondIdenticalInstallIsSkippedWithoutRefetching(t *testing.T) {
	var fetchCount atomic.Int32
	payload := "plugin-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetchCount.Add(1)
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	runtime := &countingRuntime{}
	s := NewScheduler(Deps{
		Fetcher:   fetch.New(nil),
		Runtime:   runtime,
		PluginDir: dir,
	})
	defer s.Stop()

	plugin := site.PluginEntry{Name: "foo", Version: "1.0", URL: srv.URL, SHA256: sha256b64(payload), SourceID: "default"}

	first := s.SubmitInstall("default", plugin, true, nil)
	st1 := waitForTerminal(t, first, 2*time.Second)
	if st1.Kind != Success {
		t.Fatalf("first install = %v, want Success", st1)
	}

	second := s.SubmitInstall("default", plugin, true, nil)
	st2 := waitForTerminal(t, second, 2*time.Second)
	if st2.Kind != Skipped {
		t.Fatalf("second install = %v, want Skipped", st2)
	}

	if fetchCount.Load() != 1 {
		t.Fatalf("fetch count = %d, want 1 (second install must not re-download)", fetchCount.Load())
	}
}

func TestInstallChecksumMismatchFailsAndLeavesNoFile(t *testing.T) {
	payload := "plugin-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewScheduler(Deps{Fetcher: fetch.New(nil), PluginDir: dir})
	defer s.Stop()

	plugin := site.PluginEntry{Name: "bar", Version: "1.0", URL: srv.URL, SHA256: "not-the-right-hash", SourceID: "default"}
	rec := s.SubmitInstall("default", plugin, true, nil)
	st := waitForTerminal(t, rec, 2*time.Second)

	if st.Kind != Failure {
		t.Fatalf("install = %v, want Failure", st)
	}
	if _, err := os.Stat(activePath(dir, "bar")); err == nil {
		t.Fatal("active plugin file should not exist after a checksum failure")
	}
}

func TestConnectionCheckWithNoConnectionCheckURLSkipsInternet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewScheduler(Deps{
		Fetcher: fetch.New(nil),
		SiteURLLookup: func(siteID string) (string, bool) {
			return srv.URL, true
		},
	})
	defer s.Stop()

	rec := s.AddJob(&Record{Kind: KindConnectionCheck, SiteID: "no-check-url-site"})
	waitForTerminal(t, rec, 2*time.Second)

	channels := rec.GetChannels()
	if channels.Internet != "SKIPPED" {
		t.Fatalf("Internet = %q, want SKIPPED", channels.Internet)
	}
	if channels.UpdateSite != "OK" {
		t.Fatalf("UpdateSite = %q, want OK (a site's own catalog URL is always probed)", channels.UpdateSite)
	}
}

func TestSubmitRestartTwiceDoesNotDuplicate(t *testing.T) {
	s := NewScheduler(Deps{Fetcher: fetch.New(nil), Lifecycle: blockingLifecycle{}})
	defer s.Stop()

	first, isNew1 := s.SubmitRestart("admin")
	second, isNew2 := s.SubmitRestart("admin")

	if !isNew1 {
		t.Fatal("first SubmitRestart call should be new")
	}
	if isNew2 {
		t.Fatal("second concurrent SubmitRestart call should observe the existing job")
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same restart job, got ids %d and %d", first.ID, second.ID)
	}
	if !s.IsRestartScheduled() {
		t.Fatal("IsRestartScheduled should be true while a restart job is pending/running")
	}
}

type blockingLifecycle struct{}

func (blockingLifecycle) SafeRestart(auth string) error   { return nil }
func (blockingLifecycle) CancelRestart() error            { return nil }
func (blockingLifecycle) RewriteHudsonWar(path string) error { return nil }

func TestAddJobSchedulesExactlyOneConnectionCheckPerSite(t *testing.T) {
	s := NewScheduler(Deps{Fetcher: fetch.New(nil), Runtime: &countingRuntime{}, PluginDir: t.TempDir()})
	defer s.Stop()

	p1 := site.PluginEntry{Name: "a", Version: "1.0", URL: "http://example.invalid/a.jpi", SourceID: "default"}
	p2 := site.PluginEntry{Name: "b", Version: "1.0", URL: "http://example.invalid/b.jpi", SourceID: "default"}
	s.SubmitInstall("default", p1, false, nil)
	s.SubmitInstall("default", p2, false, nil)

	time.Sleep(20 * time.Millisecond)

	jobs := s.Jobs()
	var connChecks int
	for i, j := range jobs {
		if j.Kind == KindConnectionCheck {
			connChecks++
			if i != 0 {
				t.Fatalf("ConnectionCheckJob must precede other jobs for its site, found at index %d", i)
			}
		}
	}
	if connChecks != 1 {
		t.Fatalf("connChecks = %d, want exactly 1 for one site across two jobs", connChecks)
	}
}

