package job

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/Jsparrow/jenkins/internal/checksum"
	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/digest"
	"github.com/Jsparrow/jenkins/internal/fetch"
)

// MissingDependency reports a missing prerequisite for a job: a plugin URL
// that failed pre-validation, or an unbound collaborator.
type MissingDependency struct {
	Reason string
}

func (e *MissingDependency) Error() string { return e.Reason }

// runInstall implements the InstallationJob state machine (spec §4.9):
// dedup wait, download, checksum verification, atomic file replace, and
// hand-off to the PluginRuntime collaborator.
func (s *Scheduler) runInstall(ctx context.Context, r *Record) {
	key := keyOf(r.Plugin)

	s.dedupMu.Lock()
	for s.inFlight[key] != nil {
		s.dedupCond.Wait()
	}
	if s.succeeded[key] {
		s.dedupMu.Unlock()
		s.transition(r, Status{Kind: Skipped, Message: "already installed by an earlier job"})
		return
	}
	s.inFlight[key] = r
	s.dedupMu.Unlock()

	finalStatus := s.doInstall(ctx, r)

	s.dedupMu.Lock()
	delete(s.inFlight, key)
	if finalStatus.Kind == Success || finalStatus.Kind == SuccessButRequiresRestart {
		s.succeeded[key] = true
	}
	s.dedupCond.Broadcast()
	s.dedupMu.Unlock()

	s.transition(r, finalStatus)
}

func (s *Scheduler) doInstall(ctx context.Context, r *Record) Status {
	s.transition(r, Status{Kind: Running})

	if _, err := url.ParseRequestURI(r.Plugin.URL); err != nil {
		return Status{Kind: Failure, Err: &MissingDependency{Reason: "invalid plugin URL: " + r.Plugin.URL}}
	}

	resp, err := s.deps.Fetcher.Open(ctx, r.Plugin.URL, fetch.Options{ReadTimeout: s.deps.ReadTimeout})
	if err != nil {
		return Status{Kind: Failure, Err: err}
	}
	defer resp.Body.Close()

	tmp := tempPath(s.deps.PluginDir, r.Plugin.Name)
	if err := os.MkdirAll(s.deps.PluginDir, 0755); err != nil {
		return Status{Kind: Failure, Err: fmt.Errorf("creating plugin directory: %w", err)}
	}
	f, err := os.Create(tmp)
	if err != nil {
		return Status{Kind: Failure, Err: fmt.Errorf("creating temp download file: %w", err)}
	}

	pipeline := digest.NewPipeline(f)
	s.transition(r, Status{Kind: Installing, Percent: 0})
	written, copyErr := pipeline.CopyFrom(resp.Body)
	closeErr := f.Close()
	_ = written

	if copyErr != nil {
		os.Remove(tmp)
		return Status{Kind: Failure, Err: fmt.Errorf("downloading %s: %w", r.Plugin.Name, copyErr)}
	}
	if closeErr != nil {
		os.Remove(tmp)
		return Status{Kind: Failure, Err: fmt.Errorf("closing temp download file: %w", closeErr)}
	}
	if err := pipeline.CheckLength(resp.ContentLength); err != nil {
		os.Remove(tmp)
		return Status{Kind: Failure, Err: err}
	}

	computed := pipeline.Sum()
	verifyErr := checksum.Verify(
		checksum.Expected{SHA512: r.Plugin.SHA512, SHA256: r.Plugin.SHA256, SHA1: r.Plugin.SHA1},
		checksum.Computed{SHA512: computed.SHA512, SHA256: computed.SHA256, SHA1: computed.SHA1},
	)
	if verifyErr != nil {
		os.Remove(tmp)
		return Status{Kind: Failure, Err: verifyErr}
	}

	if err := rotateIntoPlace(s.deps.PluginDir, r.Plugin.Name, tmp); err != nil {
		return Status{Kind: Failure, Err: err}
	}

	if !r.DynamicLoad {
		return Status{Kind: SuccessButRequiresRestart, Message: "installed; restart required to load"}
	}

	if s.deps.Runtime == nil {
		return Status{Kind: SuccessButRequiresRestart, Message: "no plugin runtime bound; restart required"}
	}

	path := activePath(s.deps.PluginDir, r.Plugin.Name)
	if err := s.deps.Runtime.DynamicLoad(path, false, r.Batch); err != nil {
		var restart *collab.RestartRequired
		if errors.As(err, &restart) {
			return Status{Kind: SuccessButRequiresRestart, Message: err.Error()}
		}
		return Status{Kind: Failure, Err: err}
	}
	return Status{Kind: Success}
}

// rotateIntoPlace performs the atomic rename described in spec §6 for a
// temp file that has already been written and verified.
func rotateIntoPlace(pluginDir, name, tmp string) error {
	active := activePath(pluginDir, name)
	bak := backupPath(pluginDir, name)
	if _, err := os.Stat(active); err == nil {
		os.Remove(bak)
		if err := os.Rename(active, bak); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("rotating previous version to backup: %w", err)
		}
	}
	if err := os.Rename(tmp, active); err != nil {
		return fmt.Errorf("installing downloaded file: %w", err)
	}
	return nil
}
