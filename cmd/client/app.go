package main

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/apiclient"
	"appupdate-go/internal/bundlestore"
	"appupdate-go/internal/cstmerr"
	"appupdate-go/internal/dbclient"
	"appupdate-go/internal/device"
	"appupdate-go/internal/fetcher"
	"appupdate-go/internal/ota"
	"appupdate-go/internal/prompt"
	"appupdate-go/internal/reporting"
	"context"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// app holds the wired update client for one process.
type app struct {
	cfg          *config.Config
	orchestrator *ota.Orchestrator
	request      ota.CheckRequest
	fetcher      *fetcher.Fetcher
	store        *bundlestore.Store
	db           dbclient.DBClient

	restartOnce sync.Once
	restarting  chan struct{}
}

// resolvePlatform prefers the configured platform and falls back to GOOS.
func resolvePlatform(cfg *config.Config) (ota.Platform, error) {
	if cfg.Platform != "" {
		return ota.ParsePlatform(cfg.Platform)
	}
	if p, ok := ota.DetectPlatform(); ok {
		return p, nil
	}
	return "", cstmerr.NewConfigError("platform is not set and cannot be detected on this host", nil)
}

func newRenderer(mode string, in io.Reader, out io.Writer) prompt.Renderer {
	switch mode {
	case "auto-confirm":
		return prompt.NewHeadlessRenderer(true)
	case "auto-cancel":
		return prompt.NewHeadlessRenderer(false)
	}
	return prompt.NewTerminalRenderer(in, out)
}

// newApp wires every collaborator from cfg.
func newApp(cfg *config.Config, in io.Reader, out io.Writer) (*app, error) {
	platform, err := resolvePlatform(cfg)
	if err != nil {
		return nil, err
	}
	identity, err := ota.NewIdentity(cfg.Identity.Key, cfg.Identity.IOSPackage, cfg.Identity.AndroidPackage)
	if err != nil {
		return nil, err
	}

	store, err := bundlestore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:        cfg,
		store:      store,
		request:    ota.CheckRequest{Identity: identity},
		restarting: make(chan struct{}),
	}

	api := apiclient.New(cfg)
	sinks := reporting.MultiSink{api, reporting.LogSink{}}
	if cfg.Database.Enabled {
		db, err := dbclient.NewDBClient(&cfg.Database, "gorm", &reporting.DeliveryRecord{})
		if err != nil {
			store.Close()
			return nil, err
		}
		a.db = db
		ledger := reporting.NewLedgerSink(db)
		sinks = append(sinks, ledger)
		logLastDelivery(ledger)
	}

	a.fetcher = fetcher.New(api, store, cfg.BundleDir, cfg.DownloadBaseDir, fetcher.WithRestart(a.restart))

	a.orchestrator = ota.New(platform, ota.Collaborators{
		Versions: api,
		Store:    store,
		Fetcher:  a.fetcher,
		Reporter: sinks,
		Prompts:  prompt.NewGateway(newRenderer(cfg.Prompt.Mode, in, out)),
		Device:   device.NewHostInfo(ota.DeviceInfo{}),
	},
		ota.WithApplyOptions(ota.ApplyOptions{
			RestartAfterInstall: cfg.RestartAfterInstall,
			RestartDelay:        cfg.RestartDelay,
		}),
		ota.WithDefaultLoader(ota.LoaderOptions{
			Text:            cfg.Loader.Text,
			Color:           cfg.Loader.Color,
			BackgroundColor: cfg.Loader.BackgroundColor,
			TextColor:       cfg.Loader.TextColor,
		}),
		ota.WithDefaultDialog(ota.DialogOptions{
			Title:        cfg.Dialog.Title,
			Message:      cfg.Dialog.Message,
			ConfirmText:  cfg.Dialog.ConfirmText,
			CancelText:   cfg.Dialog.CancelText,
			OverlayColor: cfg.Dialog.OverlayColor,
		}),
	)

	log.Infof("Update client ready for %s (bundles in %s)", platform, cfg.BundleDir)
	return a, nil
}

// restart marks the process for relaunch. The caller of run exits and the
// service supervisor starts it again on the new bundle.
func (a *app) restart() {
	a.restartOnce.Do(func() {
		log.Info("Restarting to load the new bundle")
		close(a.restarting)
	})
}

// run checks once, or every poll interval until ctx is done. It reports
// whether the host has to be restarted.
func (a *app) run(ctx context.Context) bool {
	var tick <-chan time.Time
	if n := a.cfg.PollIntervalSeconds; n > 0 {
		ticker := time.NewTicker(time.Duration(n) * time.Second)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		installed := a.check(ctx)
		if tick == nil && !installed {
			return false
		}
		select {
		case <-a.restarting:
			return true
		case <-ctx.Done():
			return false
		case <-tick:
		}
	}
}

// check runs one update check and reports whether a restart is now pending.
func (a *app) check(ctx context.Context) bool {
	result := a.orchestrator.Check(ctx, a.request)
	if !result.Delivered || result.Outcome == nil {
		return false
	}
	version := result.Decision.Manifest.Version
	log.Infof("Delivery of version %d finished: %s", version, result.Outcome.Status)
	if result.Outcome.Status != ota.OutcomeSuccess {
		return false
	}
	if rec, ok, err := a.store.Get(ctx, version); err == nil && ok {
		log.Infof("Bundle %q installed at %s (sha256 %s)", rec.BundleID, rec.Path, rec.SHA256)
	}
	return a.cfg.RestartAfterInstall
}

func logLastDelivery(ledger *reporting.LedgerSink) {
	recs, err := ledger.Recent(context.Background(), 1)
	if err != nil {
		log.Warnf("Failed to read the delivery ledger: %v", err)
		return
	}
	if len(recs) > 0 {
		log.Infof("Last recorded delivery: bundle %q %s at %s", recs[0].BundleID, recs[0].Status, recs[0].CreatedAt.Format(time.RFC3339))
	}
}

func (a *app) Close() error {
	var result *multierror.Error
	a.fetcher.CancelRestart()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := a.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
