// Package collab names the contracts of the subsystems this module treats
// as external collaborators (spec §1 "Out of scope"): the plugin runtime
// that actually loads code into the live process, the lifecycle abstraction
// that can rewrite and restart the host, the proxy-aware HTTP opener, and
// the per-site signature validator. Only the interfaces live here — the
// concrete implementations belong to whatever embeds this module.
package collab

import (
	"context"
	"net/http"
)

// RestartRequired is returned by PluginRuntime methods when the operation
// succeeded but cannot take effect until the host process restarts.
type RestartRequired struct {
	Reason string
}

func (e *RestartRequired) Error() string {
	if e.Reason == "" {
		return "operation requires a restart to take effect"
	}
	return "operation requires a restart to take effect: " + e.Reason
}

// PluginRuntime loads plugin archives into the live process. DynamicLoad
// and Start may return a *RestartRequired when the runtime cannot hot-swap
// the given plugin(s) and a full restart is needed instead (spec §4.9).
type PluginRuntime interface {
	// DynamicLoad installs the plugin file at path into the running
	// process. strict controls whether a failed dependency check aborts
	// the load; batch lists the other plugin names installed in the same
	// batch, for dependency resolution within the batch.
	DynamicLoad(path string, strict bool, batch []string) error

	// Start activates a batch of already-loaded plugins.
	Start(batch []string) error
}

// Lifecycle can rewrite the host's core binary and trigger a restart.
type Lifecycle interface {
	// SafeRestart schedules a graceful restart once no jobs are running,
	// under the identity named by auth (empty means the system identity).
	SafeRestart(auth string) error

	// CancelRestart cancels a previously scheduled SafeRestart, if one is
	// pending and has not yet begun.
	CancelRestart() error

	// RewriteHudsonWar atomically replaces the running core binary/archive
	// with the file at path. Takes effect on the next restart.
	RewriteHudsonWar(path string) error
}

// SignatureCheckOutcome is the result of validating a site's signed JSON
// payload against its configured certificate/public key.
type SignatureCheckOutcome int

const (
	SignatureOK SignatureCheckOutcome = iota
	SignatureWarn
	SignatureError
)

func (o SignatureCheckOutcome) String() string {
	switch o {
	case SignatureOK:
		return "ok"
	case SignatureWarn:
		return "warn"
	case SignatureError:
		return "error"
	default:
		return "unknown"
	}
}

// SignatureValidator verifies the signed envelope of a single update site's
// metadata document. It is bound per-site: the signing certificate or key
// travels with the site configuration, not with this module.
type SignatureValidator interface {
	Verify(document []byte) (SignatureCheckOutcome, error)
}

// Opener returns an HTTP connection for a URL, honoring whatever proxy
// configuration the embedding host has set up. internal/fetch depends on
// this rather than constructing its own *http.Client so the host controls
// proxying, TLS trust, and connection pooling centrally.
type Opener interface {
	Open(ctx context.Context, req *http.Request) (*http.Response, error)
}

// OpenerFunc adapts a function to an Opener.
type OpenerFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f OpenerFunc) Open(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}
