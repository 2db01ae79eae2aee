// Package statusapi implements the read-only Status API (spec §4.11): a
// set of plain net/http.Handlers returning JSON projections of connection
// status, install progress, and incomplete-install recovery, matching the
// teacher's client-side JSON struct-tag conventions in pkg/api from the
// server side instead.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Jsparrow/jenkins/internal/connstatus"
	"github.com/Jsparrow/jenkins/internal/job"
	"github.com/Jsparrow/jenkins/internal/logging"
	"github.com/Jsparrow/jenkins/internal/resume"
	"github.com/Jsparrow/jenkins/internal/site"
)

// reprobeTimeout bounds the single re-probe ConnectionStatus may trigger.
const reprobeTimeout = 10 * time.Second

var log = logging.L("statusapi")

// Server wires the job scheduler, connection-status monitor, site
// registry, and install-resume store into HTTP handlers.
type Server struct {
	Scheduler  *job.Scheduler
	ConnStatus *connstatus.Monitor
	Registry   *site.Registry
	Resume     *resume.Store
}

// connectionStatusResponse is the §4.11 shape for connectionStatus.
type connectionStatusResponse struct {
	Internet   string `json:"internet"`
	UpdateSite string `json:"updatesite"`
}

// ConnectionStatus handles GET connectionStatus?siteId=<id>. If both
// channels are FAILED, the probe is re-run once before responding; a
// successful re-probe triggers updateAllSites() as a side effect (spec
// §4.11).
func (srv *Server) ConnectionStatus(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("siteId")
	if siteID == "" {
		siteID = site.PredefinedUpdateSiteID
	}

	channels, ok := srv.ConnStatus.Get(siteID)
	if !ok {
		channels = connstatus.Channels{Internet: connstatus.Unchecked, UpdateSite: connstatus.Unchecked}
	}

	if channels.AllFailed() {
		rec := srv.Scheduler.AddJob(&job.Record{Kind: job.KindConnectionCheck, SiteID: siteID})
		deadline := time.Now().Add(reprobeTimeout)
		for !rec.Status().Kind.IsTerminal() && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if retried, ok := srv.ConnStatus.Get(siteID); ok {
			channels = retried
			if !channels.AllFailed() && srv.Registry != nil {
				go srv.Registry.UpdateAllSites(context.Background(), nil, false)
			}
		}
	}

	writeJSON(w, connectionStatusResponse{
		Internet:   string(channels.Internet),
		UpdateSite: string(channels.UpdateSite),
	})
}

// installJobView is one entry in the installStatus jobs array.
type installJobView struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Title           string `json:"title"`
	InstallStatus   string `json:"installStatus"`
	RequiresRestart bool   `json:"requiresRestart"`
	CorrelationID   string `json:"correlationId,omitempty"`
}

type installStatusResponse struct {
	State string           `json:"state"`
	Jobs  []installJobView `json:"jobs"`
}

// InstallStatus handles GET installStatus?correlationId=<uuid>.
func (srv *Server) InstallStatus(w http.ResponseWriter, r *http.Request) {
	correlationID := r.URL.Query().Get("correlationId")
	records := srv.Scheduler.JobsByCorrelation(correlationID)

	resp := installStatusResponse{State: "Success", Jobs: make([]installJobView, 0, len(records))}
	for _, rec := range records {
		if rec.Kind != job.KindInstall && rec.Kind != job.KindEnable && rec.Kind != job.KindDowngrade {
			continue
		}
		st := rec.Status()
		if !st.Kind.IsTerminal() {
			resp.State = "Running"
		}
		resp.Jobs = append(resp.Jobs, installJobView{
			Name:            rec.Plugin.Name,
			Version:         rec.Plugin.Version,
			Title:           rec.Plugin.Title,
			InstallStatus:   st.Kind.String(),
			RequiresRestart: st.Kind == job.SuccessButRequiresRestart,
			CorrelationID:   rec.GetCorrelationID(),
		})
	}
	writeJSON(w, resp)
}

// IncompleteInstallStatus handles GET incompleteInstallStatus.
func (srv *Server) IncompleteInstallStatus(w http.ResponseWriter, r *http.Request) {
	snapshots, err := srv.Resume.Load()
	if err != nil {
		log.Error("loading install-resume state", "error", err)
		snapshots = map[string]resume.Snapshot{}
	}
	writeJSON(w, snapshots)
}

// InvalidateData handles POST invalidateData: invalidates all site caches.
func (srv *Server) InvalidateData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	for _, s := range srv.Registry.All() {
		s.Invalidate()
	}
	writeJSON(w, map[string]bool{"ok": true})
}

// SafeRestart handles POST safeRestart.
func (srv *Server) SafeRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, isNew := srv.Scheduler.SubmitRestart(r.Header.Get("X-Authenticated-User"))
	writeJSON(w, map[string]any{"jobId": rec.ID, "scheduled": isNew})
}

// CancelRestart handles POST cancelRestart.
func (srv *Server) CancelRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	canceled := srv.Scheduler.CancelRestart()
	writeJSON(w, map[string]bool{"canceled": canceled})
}

// Upgrade handles POST upgrade?siteId=<id>&plugin=<name>.
func (srv *Server) Upgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	siteID := r.URL.Query().Get("siteId")
	pluginName := r.URL.Query().Get("plugin")

	s, ok := srv.Registry.Get(siteID)
	if !ok {
		http.Error(w, "unknown site", http.StatusNotFound)
		return
	}
	entry, ok := s.GetPlugin(pluginName)
	if !ok {
		http.Error(w, "unknown plugin", http.StatusNotFound)
		return
	}

	rec := srv.Scheduler.SubmitInstall(siteID, entry, true, nil)
	writeJSON(w, map[string]int64{"jobId": rec.ID})
}

// Downgrade handles POST downgrade?siteId=<id>&plugin=<name>.
func (srv *Server) Downgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	siteID := r.URL.Query().Get("siteId")
	pluginName := r.URL.Query().Get("plugin")

	rec := srv.Scheduler.SubmitDowngrade(siteID, site.PluginEntry{Name: pluginName, SourceID: siteID})
	writeJSON(w, map[string]int64{"jobId": rec.ID})
}

// Mux builds the HTTP surface named in spec §6.
func (srv *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/connectionStatus", srv.ConnectionStatus)
	mux.HandleFunc("/incompleteInstallStatus", srv.IncompleteInstallStatus)
	mux.HandleFunc("/installStatus", srv.InstallStatus)
	mux.HandleFunc("/invalidateData", srv.InvalidateData)
	mux.HandleFunc("/safeRestart", srv.SafeRestart)
	mux.HandleFunc("/cancelRestart", srv.CancelRestart)
	mux.HandleFunc("/upgrade", srv.Upgrade)
	mux.HandleFunc("/downgrade", srv.Downgrade)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encoding JSON response", "error", err)
	}
}
