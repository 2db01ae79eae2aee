package job

import "context"

// runEnable implements EnableJob (spec §4.9): skips the download step
// entirely and, when DynamicLoad is set, activates the installed plugin via
// PluginRuntime.Start. It does not change any persisted enabled flag of the
// plugin. A failed or declined dynamic reload sets requiresRestart.
func (s *Scheduler) runEnable(ctx context.Context, r *Record) {
	s.transition(r, Status{Kind: Running})

	if s.deps.Runtime == nil {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: "no plugin runtime bound; restart required"})
		return
	}

	if !r.DynamicLoad {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: "enabled; restart required to activate"})
		return
	}

	if err := s.deps.Runtime.Start([]string{r.Plugin.Name}); err != nil {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: err.Error()})
		return
	}

	s.transition(r, Status{Kind: Success})
}

// runNoOp implements NoOpJob (spec §4.9): reports "already installed at the
// desired version" through the same status surface without doing anything.
func (s *Scheduler) runNoOp(ctx context.Context, r *Record) {
	s.transition(r, Status{Kind: Success, Message: "already installed at the requested version"})
}
