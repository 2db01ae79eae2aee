// Package fetch implements the proxy-aware HTTP Fetcher (spec §4.1): a GET
// that follows redirects by default, honors a per-call read timeout, and
// classifies transport failures into the taxonomy the rest of the module
// reacts to (spec §7).
package fetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/logging"
)

var log = logging.L("fetch")

// Options configures a single Open call.
type Options struct {
	// ReadTimeout bounds the entire request, including redirects and body
	// read. Zero means no additional deadline beyond the context's own.
	ReadTimeout time.Duration

	// Header is sent with the request, e.g. conditional-GET headers.
	Header http.Header
}

// Response is the byte stream plus metadata the caller needs.
type Response struct {
	Body          io.ReadCloser
	StatusCode    int
	Header        http.Header
	ContentLength int64
	// FinalURL is the request URL after following redirects, for
	// diagnostics (spec §4.1(c)).
	FinalURL string
}

// Fetcher opens URLs through a collab.Opener, defaulting to a plain
// *http.Client routed through the process's environment proxy
// configuration when none is supplied.
type Fetcher struct {
	opener collab.Opener
}

// New builds a Fetcher. A nil opener falls back to http.DefaultTransport's
// proxy-from-environment behavior, grounded on the teacher's plain
// *http.Client construction in its self-update flow.
func New(opener collab.Opener) *Fetcher {
	if opener == nil {
		client := &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		}
		opener = collab.OpenerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return client.Do(req.WithContext(ctx))
		})
	}
	return &Fetcher{opener: opener}
}

// Open performs a GET against rawURL and returns the response stream.
// Callers must close Response.Body.
func (f *Fetcher) Open(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	cancel := context.CancelFunc(func() {})
	if opts.ReadTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.ReadTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, &NetworkError{URL: rawURL, Transient: false, Err: err}
	}
	for k, vals := range opts.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.opener.Open(ctx, req)
	if err != nil {
		cancel()
		if cerr := classifyCertificateError(rawURL, err); cerr != nil {
			log.Warn("tls verification failed", "url", rawURL, "error", err)
			return nil, cerr
		}
		log.Warn("fetch failed", "url", rawURL, "error", err)
		return nil, &NetworkError{URL: rawURL, Transient: isTransient(err), Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		Body:          cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		FinalURL:      finalURL,
	}, nil
}

// cancelOnClose releases the ReadTimeout context when the body is closed,
// so the deadline keeps covering the body read after Open returns.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// NetworkError reports a transport-level failure. Transient indicates the
// caller may retry (spec §7).
type NetworkError struct {
	URL       string
	Transient bool
	Err       error
}

func (e *NetworkError) Error() string {
	return "fetching " + e.URL + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// CertificateError indicates a TLS handshake failed specifically on
// certificate-chain verification (spec §4.1, "PKIX path building").
type CertificateError struct {
	URL string
	Err error
}

func (e *CertificateError) Error() string {
	return "certificate verification failed for " + e.URL + ": " + e.Err.Error()
}

func (e *CertificateError) Unwrap() error { return e.Err }

func classifyCertificateError(url string, err error) error {
	var unknownAuth x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &unknownAuth) || errors.As(err, &invalid) || errors.As(err, &verifyErr) {
		return &CertificateError{URL: url, Err: err}
	}
	if strings.Contains(err.Error(), "PKIX path building") {
		return &CertificateError{URL: url, Err: err}
	}
	return nil
}

func isTransient(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
