package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jsparrow/jenkins/internal/collab"
	"github.com/Jsparrow/jenkins/internal/config"
	"github.com/Jsparrow/jenkins/internal/connstatus"
	"github.com/Jsparrow/jenkins/internal/fetch"
	"github.com/Jsparrow/jenkins/internal/job"
	"github.com/Jsparrow/jenkins/internal/lifecycle"
	"github.com/Jsparrow/jenkins/internal/logging"
	"github.com/Jsparrow/jenkins/internal/resume"
	"github.com/Jsparrow/jenkins/internal/site"
	"github.com/Jsparrow/jenkins/internal/statusapi"
	"github.com/Jsparrow/jenkins/internal/workerpool"
	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFile  string
	httpAddr string
)

var rootCmd = &cobra.Command{
	Use:   "updatecenter",
	Short: "Jenkins Update Center",
	Long:  `Update Center - discovery, fetch, verification and installation of plugin and core updates`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the update center controller",
	Run: func(cmd *cobra.Command, args []string) {
		runController()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("updatecenter v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <home>/update-center.yaml)")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "addr", ":8090", "status API listen address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// restartOnlyRuntime is the default PluginRuntime used when no host process
// wires in a real one (spec §1: the plugin runtime is an external
// collaborator, out of scope). A bare controller binary has nothing to
// hot-load into, so every load/start is reported as requiring a restart.
type restartOnlyRuntime struct{}

func (restartOnlyRuntime) DynamicLoad(path string, strict bool, batch []string) error {
	return &collab.RestartRequired{Reason: "no live plugin runtime wired in"}
}

func (restartOnlyRuntime) Start(batch []string) error {
	return &collab.RestartRequired{Reason: "no live plugin runtime wired in"}
}

func runController() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	log := logging.L("main")
	log.Info("starting update center", "version", version, "home", cfg.Home)

	if cfg.Never {
		log.Warn("update center disabled via configuration (never=true); status API only")
	}

	if err := os.MkdirAll(cfg.Home, 0755); err != nil {
		log.Error("creating home directory", "error", err, "home", cfg.Home)
		os.Exit(1)
	}

	fetcher := fetch.New(nil)
	connStatus := connstatus.NewMonitor()
	resumeStore := resume.New(cfg.Home)
	lifecycleMgr := lifecycle.New(warPath(cfg.Home))

	registry := site.NewRegistry(cfg.Home, fetcher, func(string) collab.SignatureValidator { return nil }, cfg.UpdateCenterURL)
	if err := registry.Load(); err != nil {
		log.Error("loading site registry", "error", err)
		os.Exit(1)
	}

	metadataPool := workerpool.New(cfg.MetadataPoolSize, cfg.MetadataPoolQueueSize)

	var scheduler *job.Scheduler
	scheduler = job.NewScheduler(job.Deps{
		Fetcher:      fetcher,
		Runtime:      restartOnlyRuntime{},
		Lifecycle:    lifecycleMgr,
		ConnStatus:   connStatus,
		MetadataPool: metadataPool,
		PluginDir:    cfg.Home,
		ReadTimeout:  cfg.DownloadReadTimeout(),
		SiteLookup: func(siteID string) (string, bool) {
			s, ok := registry.Get(siteID)
			if !ok || s.ConnectionCheckURL == "" {
				return "", false
			}
			return s.ConnectionCheckURL, true
		},
		SiteURLLookup: func(siteID string) (string, bool) {
			s, ok := registry.Get(siteID)
			if !ok || s.URL == "" {
				return "", false
			}
			return s.URL, true
		},
		OnTransition: func(r *job.Record) {
			persistResumeState(resumeStore, scheduler)
		},
	})
	defer scheduler.Stop()

	srv := &statusapi.Server{
		Scheduler:  scheduler,
		ConnStatus: connStatus,
		Registry:   registry,
		Resume:     resumeStore,
	}

	httpServer := &http.Server{Addr: httpAddr, Handler: srv.Mux()}
	go func() {
		log.Info("status API listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("status API server failed", "error", err)
		}
	}()

	if !cfg.Never {
		go func() {
			results := registry.UpdateAllSites(context.Background(), metadataPool, !cfg.NoSignatureCheck)
			for _, r := range results {
				if r.Err != nil {
					log.Warn("initial site refresh failed", "siteId", r.SiteID, "error", r.Err)
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down update center")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	metadataPool.StopAccepting()
	metadataPool.Drain(shutdownCtx)
}

// persistResumeState snapshots every install, enable and downgrade job that
// has not terminated or that ended in SuccessButRequiresRestart to durable
// state, and clears it once there is no such job (spec §4.10).
func persistResumeState(store *resume.Store, scheduler *job.Scheduler) {
	snapshots := map[string]resume.Snapshot{}
	for _, r := range scheduler.Jobs() {
		if r.Kind != job.KindInstall && r.Kind != job.KindDowngrade && r.Kind != job.KindEnable {
			continue
		}
		st := r.Status()
		if st.Kind.IsTerminal() && st.Kind != job.SuccessButRequiresRestart {
			continue
		}
		snapshots[r.Plugin.Name] = resume.Snapshot{
			PluginName: r.Plugin.Name,
			Version:    r.Plugin.Version,
			State:      st.Kind.String(),
			Message:    st.Message,
		}
	}
	if err := store.Persist(snapshots); err != nil {
		logging.L("main").Error("persisting install-resume state", "error", err)
	}
}

func warPath(home string) string {
	return home + "/jenkins.war"
}
