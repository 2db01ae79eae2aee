package job

import "context"

// runDowngrade implements PluginDowngradeJob (spec §4.9): installs from the
// sibling .bak file next to the current .jpi/.hpi via atomic rename. The
// spec does not require validating the backup before restoring it (an open
// question the spec deliberately leaves as observed behavior).
func (s *Scheduler) runDowngrade(ctx context.Context, r *Record) {
	s.transition(r, Status{Kind: Running})

	if err := restoreBackup(s.deps.PluginDir, r.Plugin.Name); err != nil {
		s.transition(r, Status{Kind: Failure, Err: err})
		return
	}

	if !r.DynamicLoad || s.deps.Runtime == nil {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: "downgraded; restart required to load"})
		return
	}

	path := activePath(s.deps.PluginDir, r.Plugin.Name)
	if err := s.deps.Runtime.DynamicLoad(path, false, nil); err != nil {
		s.transition(r, Status{Kind: SuccessButRequiresRestart, Message: err.Error()})
		return
	}
	s.transition(r, Status{Kind: Success})
}
