package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jsparrow/jenkins/internal/fetch"
)

func mustSite(t *testing.T, id, body string) (*Site, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	s := New(id, srv.URL, "", fetch.New(nil), nil)
	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh site %s: %v", id, err)
	}
	return s, srv
}

func TestMergeTwoSitesDifferentVersionsOfSamePlugin(t *testing.T) {
	a, srvA := mustSite(t, "a", `updateCenter.post({"id":"a","plugins":{"foo":{"name":"foo","version":"1.0","url":"http://x/foo-1.0.jpi"}}});`)
	defer srvA.Close()
	b, srvB := mustSite(t, "b", `updateCenter.post({"id":"b","plugins":{"foo":{"name":"foo","version":"2.0","url":"http://x/foo-2.0.jpi"}}});`)
	defer srvB.Close()

	merged := Merge([]*Site{a, b})

	primary, ok := merged["foo"]
	if !ok || primary.Version != "1.0" || primary.SourceID != "a" {
		t.Fatalf("primary foo = %+v ok=%v, want site a's 1.0", primary, ok)
	}

	alt, ok := merged["foo:2.0"]
	if !ok || alt.Version != "2.0" || alt.SourceID != "b" {
		t.Fatalf("alt foo:2.0 = %+v ok=%v, want site b's 2.0", alt, ok)
	}
}

func TestMergeSameVersionFromTwoSitesIsNotDuplicated(t *testing.T) {
	a, srvA := mustSite(t, "a", `updateCenter.post({"id":"a","plugins":{"foo":{"name":"foo","version":"1.0","url":"http://x/foo.jpi"}}});`)
	defer srvA.Close()
	b, srvB := mustSite(t, "b", `updateCenter.post({"id":"b","plugins":{"foo":{"name":"foo","version":"1.0","url":"http://y/foo.jpi"}}});`)
	defer srvB.Close()

	merged := Merge([]*Site{a, b})

	if _, ok := merged["foo:1.0"]; ok {
		t.Fatal("identical (name,version) across sites should not produce a synthetic key")
	}
	if len(merged) != 1 {
		t.Fatalf("merged = %+v, want exactly one entry", merged)
	}
}
