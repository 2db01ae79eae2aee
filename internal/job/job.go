// Package job implements the Job Queue/Scheduler and the per-kind job state
// machines (spec §4.8–§4.9): a single-worker installer queue with
// monotonically increasing ids, a separate multi-worker pool for metadata
// refresh and connection checks, and one state machine per job kind
// represented as a tagged union rather than a class hierarchy (spec §9).
package job

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Jsparrow/jenkins/internal/connstatus"
	"github.com/Jsparrow/jenkins/internal/site"
)

// Kind tags which state machine a Record belongs to.
type Kind int

const (
	KindConnectionCheck Kind = iota
	KindInstall
	KindEnable
	KindNoOp
	KindDowngrade
	KindCoreUpgrade
	KindCoreDowngrade
	KindCompleteBatch
	KindRestart
)

func (k Kind) String() string {
	switch k {
	case KindConnectionCheck:
		return "ConnectionCheck"
	case KindInstall:
		return "Install"
	case KindEnable:
		return "Enable"
	case KindNoOp:
		return "NoOp"
	case KindDowngrade:
		return "Downgrade"
	case KindCoreUpgrade:
		return "CoreUpgrade"
	case KindCoreDowngrade:
		return "CoreDowngrade"
	case KindCompleteBatch:
		return "CompleteBatch"
	case KindRestart:
		return "Restart"
	default:
		return "Unknown"
	}
}

// StatusKind is the variant tag of a job's status value (spec §3:
// "immutable value replaced on transition").
type StatusKind int

const (
	Pending StatusKind = iota
	Running
	Installing
	Success
	SuccessButRequiresRestart
	Skipped
	Failure
	Canceled
)

func (s StatusKind) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Installing:
		return "Installing"
	case Success:
		return "Success"
	case SuccessButRequiresRestart:
		return "SuccessButRequiresRestart"
	case Skipped:
		return "Skipped"
	case Failure:
		return "Failure"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether this status ends the job's lifecycle.
func (s StatusKind) IsTerminal() bool {
	switch s {
	case Success, SuccessButRequiresRestart, Skipped, Failure, Canceled:
		return true
	default:
		return false
	}
}

// Status is the job's current state: a plain value, never an exception
// (spec §9 design note).
type Status struct {
	Kind    StatusKind
	Percent int
	Message string
	Err     error
}

func (s Status) MarshalJSON() ([]byte, error) {
	msg := s.Message
	if msg == "" && s.Err != nil {
		msg = s.Err.Error()
	}
	return json.Marshal(struct {
		State   string `json:"state"`
		Percent int    `json:"percent,omitempty"`
		Message string `json:"message,omitempty"`
	}{State: s.Kind.String(), Percent: s.Percent, Message: msg})
}

// Record is the shared representation for every job kind, playing the role
// the spec's UpdateCenterJob base class plays in the original hierarchy.
// Kind-specific data lives alongside the shared fields rather than in
// subclasses (spec §9 tagged-union design note).
type Record struct {
	ID            int64
	Kind          Kind
	SiteID        string
	CorrelationID string
	CreatedAt     time.Time

	mu     sync.Mutex
	status Status

	// Install / Downgrade / CoreUpgrade / CoreDowngrade payload.
	Plugin      site.PluginEntry
	DynamicLoad bool
	Batch       []string

	// ConnectionCheck payload.
	Channels connstatus.Channels

	// Restart payload.
	Auth string

	// set once correlationId has been assigned (spec §3 "settable exactly once").
	correlationSet bool
}

// Status returns a snapshot of the job's current status.
func (r *Record) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// setStatus transitions the job to a new status. Callers are the kind
// execute functions running on the installer worker or metadata pool; only
// one goroutine mutates a given Record's status at a time by construction
// (spec §4.8 "at-most-one-in-flight").
func (r *Record) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// SetCorrelationID assigns the correlation id exactly once (spec §3
// invariant); subsequent calls are no-ops.
func (r *Record) SetCorrelationID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.correlationSet {
		return
	}
	r.CorrelationID = id
	r.correlationSet = true
}

// GetCorrelationID returns the job's correlation id, synchronized against
// SetCorrelationID.
func (r *Record) GetCorrelationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CorrelationID
}

// GetChannels returns a snapshot of the job's connection-check channels,
// synchronized against the scheduler's connection-check goroutines.
func (r *Record) GetChannels() connstatus.Channels {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Channels
}

// pluginKey identifies an (name, version) pair for install deduplication
// (spec §4.9 step 1, §8 testable property).
type pluginKey struct {
	name    string
	version string
}

func keyOf(p site.PluginEntry) pluginKey {
	return pluginKey{name: p.Name, version: p.Version}
}
