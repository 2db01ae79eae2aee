package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/fetch"
)

func newTestSite(t *testing.T, body string) (*Site, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	s := New("default", srv.URL, "", fetch.New(nil), nil)
	return s, srv
}

func TestRefreshParsesPostMessageEnvelope(t *testing.T) {
	body := `window.parent.postMessage(JSON.stringify({"id":"default","plugins":{"foo":{"name":"foo","version":"1.0","url":"http://x/foo.jpi","sha256":"abc"}}}),'*');`
	s, srv := newTestSite(t, body)
	defer srv.Close()

	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	p, ok := s.GetPlugin("foo")
	if !ok {
		t.Fatal("expected plugin foo to be present")
	}
	if p.Version != "1.0" || p.SourceID != "default" {
		t.Fatalf("got %+v", p)
	}
}

func TestRefreshFallsBackToJSONPEnvelope(t *testing.T) {
	body := `updateCenter.post({"id":"default","plugins":{"bar":{"name":"bar","version":"2.0","url":"http://x/bar.jpi"}}});`
	s, srv := newTestSite(t, body)
	defer srv.Close()

	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := s.GetPlugin("bar"); !ok {
		t.Fatal("expected plugin bar to be present via JSONP fallback")
	}
}

func TestRefreshMalformedBodyIsError(t *testing.T) {
	s, srv := newTestSite(t, "not an envelope at all")
	defer srv.Close()

	if err := s.Refresh(context.Background(), false); err == nil {
		t.Fatal("expected an error for a body with neither envelope")
	}
}

func TestInvalidateClearsData(t *testing.T) {
	body := `updateCenter.post({"id":"default","plugins":{"foo":{"name":"foo","version":"1.0","url":"http://x/foo.jpi"}}});`
	s, srv := newTestSite(t, body)
	defer srv.Close()

	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	s.Invalidate()
	if _, ok := s.GetPlugin("foo"); ok {
		t.Fatal("expected no data after Invalidate")
	}
}

func TestSignatureRejectedBlocksRefresh(t *testing.T) {
	body := `updateCenter.post({"id":"default","plugins":{}});`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	validator := rejectingValidator{}
	s := New("default", srv.URL, "", fetch.New(nil), validator)

	err := s.Refresh(context.Background(), true)
	if _, ok := err.(*SignatureRejected); !ok {
		t.Fatalf("expected SignatureRejected, got %v", err)
	}
}

type rejectingValidator struct{}

func (rejectingValidator) Verify(_ []byte) (collab.SignatureCheckOutcome, error) {
	return collab.SignatureError, nil
}

func TestMetadataURLFor(t *testing.T) {
	s := New("default", "https://updates.jenkins.io/update-center.json", "", fetch.New(nil), nil)
	url, ok := s.MetadataURLFor("core")
	if !ok {
		t.Fatal("expected ok for well-formed site URL")
	}
	if url != "https://updates.jenkins.io/updates/core.json" {
		t.Fatalf("MetadataURLFor = %q", url)
	}
}

func TestMetadataURLForRejectsNonStandardSuffix(t *testing.T) {
	s := New("default", "https://updates.jenkins.io/other.json", "", fetch.New(nil), nil)
	if _, ok := s.MetadataURLFor("core"); ok {
		t.Fatal("expected ok=false for a URL not ending in update-center.json")
	}
}

func TestConnectionCheckProbeURLAppendsMarker(t *testing.T) {
	if got := ConnectionCheckProbeURL("https://x/check"); got != "https://x/check?uctest" {
		t.Fatalf("got %q", got)
	}
	if got := ConnectionCheckProbeURL("https://x/check?a=1"); got != "https://x/check?a=1&uctest" {
		t.Fatalf("got %q", got)
	}
}

func TestGetUpdatesRequiresStrictlyHigherVersion(t *testing.T) {
	body := `updateCenter.post({"id":"default","plugins":{"foo":{"name":"foo","version":"2.0","url":"http://x/foo.jpi"},"bar":{"name":"bar","version":"1.0","url":"http://x/bar.jpi"}}});`
	s, srv := newTestSite(t, body)
	defer srv.Close()
	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	updates := s.GetUpdates(map[string]string{"foo": "1.0", "bar": "1.0"})
	if len(updates) != 1 || updates[0].Name != "foo" {
		t.Fatalf("got %+v, want only foo", updates)
	}
}
