package job

import (
	"context"
	"errors"
	"time"

	"github.com/Jsparrow/jenkins/internal/collab"
)

// runCompleteBatch implements CompleteBatchJob (spec §4.9): after every
// sibling InstallationJob in a correlation group has terminated, activates
// the wave atomically via PluginRuntime.Start and records elapsed time.
// Ordering after its siblings is the caller's responsibility (spec §5:
// "CompleteBatchJob is ordered after all InstallationJobs bearing the same
// correlation id") — achieved simply by enqueueing it after them on the
// single-worker installer.
func (s *Scheduler) runCompleteBatch(ctx context.Context, r *Record) {
	start := time.Now()
	s.transition(r, Status{Kind: Running})

	if s.deps.Runtime == nil {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: "no plugin runtime bound; restart required"})
		return
	}

	if err := s.deps.Runtime.Start(r.Batch); err != nil {
		var restart *collab.RestartRequired
		if errors.As(err, &restart) {
			s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: err.Error()})
			return
		}
		s.transition(r, Status{Kind: Failure, Err: err})
		return
	}

	elapsed := time.Since(start)
	s.transition(r, Status{Kind: Success, Message: "batch activated in " + elapsed.String()})
}
