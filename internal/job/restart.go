package job

import "context"

// runRestart implements RestartJenkinsJob (spec §4.9): Pending -> (Running
// -> Failure? | Canceled). Running calls the lifecycle collaborator's
// SafeRestart under the identity captured at enqueue time.
func (s *Scheduler) runRestart(ctx context.Context, r *Record) {
	if r.Status().Kind == Canceled {
		return
	}

	s.transition(r, Status{Kind: Running})

	if s.deps.Lifecycle == nil {
		s.transition(r, Status{Kind: Failure, Err: errNoLifecycle})
		return
	}

	if err := s.deps.Lifecycle.SafeRestart(r.Auth); err != nil {
		s.transition(r, Status{Kind: Failure, Err: err})
		return
	}

	s.transition(r, Status{Kind: Success})
}

var errNoLifecycle = &MissingDependency{Reason: "no lifecycle collaborator bound"}
