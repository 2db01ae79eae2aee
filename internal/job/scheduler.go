package job

import (
	"context"
	"sync"
	"time"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/connstatus"
	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/logging"
	"github.com/Jsparrow/jenkins/internal/site"
	"github.com/Jsparrow/jenkins/internal/workerpool"
)

var log = logging.L("job")

// Deps are the collaborators the job state machines call out to. Only
// Fetcher is required; the rest may be nil in tests that don't exercise
// the corresponding kind.
type Deps struct {
	Fetcher      *fetch.Fetcher
	Runtime      collab.PluginRuntime
	Lifecycle    collab.Lifecycle
	ConnStatus   *connstatus.Monitor
	MetadataPool *workerpool.Pool
	PluginDir    string
	ReadTimeout  time.Duration
	// SiteLookup resolves a site id to its optional connection-check URL,
	// probed for the Internet channel; a false second return (or a nil
	// SiteLookup) means the Internet channel is SKIPPED.
	SiteLookup func(siteID string) (string, bool)
	// SiteURLLookup resolves a site id to its own catalog URL, probed for
	// the UpdateSite channel — a site always has one, so this channel is
	// never SKIPPED once the site exists.
	SiteURLLookup func(siteID string) (string, bool)
	// OnTransition is invoked after every status transition, letting the
	// caller persist install-resume state (spec §4.10).
	OnTransition func(*Record)
}

// Scheduler is the Job Queue / Scheduler (spec §4.8): a single-worker
// installer queue guaranteeing at-most-one-in-flight installation, plus use
// of a separate metadata pool for connection checks.
type Scheduler struct {
	deps Deps

	mu              sync.Mutex
	jobs            []*Record
	sourcesUsed     map[string]bool
	requiresRestart bool
	nextID          int64
	pendingRestart  *Record

	dedupMu   sync.Mutex
	dedupCond *sync.Cond
	inFlight  map[pluginKey]*Record
	succeeded map[pluginKey]bool

	installQueue chan *Record
	stopCh       chan struct{}
	stopOnce     sync.Once
	doneCh       chan struct{}
}

// NewScheduler starts the single installer worker goroutine and returns a
// ready Scheduler.
func NewScheduler(deps Deps) *Scheduler {
	s := &Scheduler{
		deps:         deps,
		sourcesUsed:  make(map[string]bool),
		inFlight:     make(map[pluginKey]*Record),
		succeeded:    make(map[pluginKey]bool),
		installQueue: make(chan *Record, 4096),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	s.dedupCond = sync.NewCond(&s.dedupMu)
	go s.runInstaller()
	return s
}

func (s *Scheduler) nextIDLocked() int64 {
	s.nextID++
	return s.nextID
}

func (s *Scheduler) transition(r *Record, st Status) {
	r.setStatus(st)
	if st.Kind == SuccessButRequiresRestart {
		s.mu.Lock()
		s.requiresRestart = true
		s.mu.Unlock()
	}
	if s.deps.OnTransition != nil {
		s.deps.OnTransition(r)
	}
}

// RequiresRestart reports the process-wide sticky restart flag (spec §3;
// monotonic, never cleared within a process lifetime).
func (s *Scheduler) RequiresRestart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requiresRestart
}

// AddJob implements spec §4.8 addJob: ensures a ConnectionCheckJob precedes
// the first job for any site, appends j, and routes it to the appropriate
// execution facility.
func (s *Scheduler) AddJob(r *Record) *Record {
	s.mu.Lock()
	if r.SiteID != "" && !s.sourcesUsed[r.SiteID] {
		s.sourcesUsed[r.SiteID] = true
		cc := &Record{
			Kind:      KindConnectionCheck,
			SiteID:    r.SiteID,
			ID:        s.nextIDLocked(),
			CreatedAt: time.Now(),
		}
		s.jobs = append(s.jobs, cc)
		s.mu.Unlock()
		s.submitMetadata(cc)
		s.mu.Lock()
	}

	r.ID = s.nextIDLocked()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.jobs = append(s.jobs, r)
	s.mu.Unlock()

	s.route(r)
	return r
}

func (s *Scheduler) route(r *Record) {
	switch r.Kind {
	case KindConnectionCheck:
		s.submitMetadata(r)
	default:
		s.installQueue <- r
	}
}

func (s *Scheduler) submitMetadata(r *Record) {
	task := func() { s.runOne(context.Background(), r) }
	if s.deps.MetadataPool == nil || !s.deps.MetadataPool.Submit(task) {
		go task()
	}
}

// GetJob returns the job with the given id.
func (s *Scheduler) GetJob(id int64) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.jobs {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// GetJobForPlugin returns the latest InstallationJob matching (name,
// sourceId), per spec §4.8.
func (s *Scheduler) GetJobForPlugin(name, sourceID string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Record
	for _, r := range s.jobs {
		if r.Kind != KindInstall {
			continue
		}
		if r.Plugin.Name == name && r.Plugin.SourceID == sourceID {
			found = r
		}
	}
	return found, found != nil
}

// Jobs returns a snapshot of every job ever submitted, oldest first.
func (s *Scheduler) Jobs() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// JobsByCorrelation filters Jobs() by correlation id.
func (s *Scheduler) JobsByCorrelation(correlationID string) []*Record {
	all := s.Jobs()
	if correlationID == "" {
		return all
	}
	out := make([]*Record, 0, len(all))
	for _, r := range all {
		if r.GetCorrelationID() == correlationID {
			out = append(out, r)
		}
	}
	return out
}

// IsSiteUsed reports whether a ConnectionCheckJob has ever been scheduled
// for a site.
func (s *Scheduler) IsSiteUsed(siteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourcesUsed[siteID]
}

func (s *Scheduler) runInstaller() {
	defer close(s.doneCh)
	for {
		select {
		case r := <-s.installQueue:
			s.runOne(context.Background(), r)
		case <-s.stopCh:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case r := <-s.installQueue:
					s.runOne(context.Background(), r)
				default:
					return
				}
			}
		}
	}
}

// Stop stops accepting the installer worker after draining queued jobs.
// Already-running jobs are allowed to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) runOne(ctx context.Context, r *Record) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("job panicked", "jobId", r.ID, "kind", r.Kind.String(), "panic", rec)
			s.transition(r, Status{Kind: Failure, Message: "internal error"})
		}
	}()

	switch r.Kind {
	case KindConnectionCheck:
		s.runConnectionCheck(ctx, r)
	case KindInstall:
		s.runInstall(ctx, r)
	case KindEnable:
		s.runEnable(ctx, r)
	case KindNoOp:
		s.runNoOp(ctx, r)
	case KindDowngrade:
		s.runDowngrade(ctx, r)
	case KindCoreUpgrade:
		s.runCoreUpgrade(ctx, r)
	case KindCoreDowngrade:
		s.runCoreDowngrade(ctx, r)
	case KindCompleteBatch:
		s.runCompleteBatch(ctx, r)
	case KindRestart:
		s.runRestart(ctx, r)
	}
}

// SubmitInstall enqueues an InstallationJob.
func (s *Scheduler) SubmitInstall(siteID string, plugin site.PluginEntry, dynamicLoad bool, batch []string) *Record {
	return s.AddJob(&Record{Kind: KindInstall, SiteID: siteID, Plugin: plugin, DynamicLoad: dynamicLoad, Batch: batch})
}

// SubmitEnable enqueues an EnableJob.
func (s *Scheduler) SubmitEnable(siteID string, plugin site.PluginEntry, dynamicLoad bool) *Record {
	return s.AddJob(&Record{Kind: KindEnable, SiteID: siteID, Plugin: plugin, DynamicLoad: dynamicLoad})
}

// SubmitNoOp enqueues a NoOpJob reporting an already-satisfied install.
func (s *Scheduler) SubmitNoOp(siteID string, plugin site.PluginEntry) *Record {
	return s.AddJob(&Record{Kind: KindNoOp, SiteID: siteID, Plugin: plugin})
}

// SubmitDowngrade enqueues a PluginDowngradeJob.
func (s *Scheduler) SubmitDowngrade(siteID string, plugin site.PluginEntry) *Record {
	return s.AddJob(&Record{Kind: KindDowngrade, SiteID: siteID, Plugin: plugin})
}

// SubmitCoreUpgrade enqueues a HudsonUpgradeJob.
func (s *Scheduler) SubmitCoreUpgrade(siteID string, core site.CoreEntry) *Record {
	return s.AddJob(&Record{Kind: KindCoreUpgrade, SiteID: siteID, Plugin: site.PluginEntry{Name: "core", Version: core.Version, URL: core.URL, SHA1: core.SHA1, SHA256: core.SHA256, SHA512: core.SHA512}})
}

// SubmitCoreDowngrade enqueues a HudsonDowngradeJob.
func (s *Scheduler) SubmitCoreDowngrade(siteID string) *Record {
	return s.AddJob(&Record{Kind: KindCoreDowngrade, SiteID: siteID, Plugin: site.PluginEntry{Name: "core"}})
}

// SubmitCompleteBatch enqueues a CompleteBatchJob for a correlation group.
func (s *Scheduler) SubmitCompleteBatch(correlationID string, batch []string) *Record {
	r := &Record{Kind: KindCompleteBatch, Batch: batch}
	r.SetCorrelationID(correlationID)
	return s.AddJob(r)
}

// SubmitRestart enqueues a RestartJenkinsJob, unless a restart job has
// already been submitted and not canceled; that job is returned instead,
// even once it has finished (spec §8 scenario 5: duplicate restart requests
// collapse).
func (s *Scheduler) SubmitRestart(auth string) (*Record, bool) {
	s.mu.Lock()
	if s.pendingRestart != nil {
		existing := s.pendingRestart
		s.mu.Unlock()
		return existing, false
	}
	r := &Record{Kind: KindRestart, Auth: auth}
	s.pendingRestart = r
	s.mu.Unlock()
	return s.AddJob(r), true
}

// IsRestartScheduled reports whether a restart job is pending or running.
func (s *Scheduler) IsRestartScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRestart != nil && !s.pendingRestart.Status().Kind.IsTerminal()
}

// CancelRestart cancels a pending (not yet running) restart job (spec
// §4.8: "only RestartJenkinsJob supports cancellation, and only from
// Pending").
func (s *Scheduler) CancelRestart() bool {
	s.mu.Lock()
	r := s.pendingRestart
	s.mu.Unlock()
	if r == nil {
		return false
	}
	if r.Status().Kind != Pending {
		return false
	}
	s.transition(r, Status{Kind: Canceled})
	s.mu.Lock()
	s.pendingRestart = nil
	s.mu.Unlock()
	return true
}
