package ota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// VersionService fetches the manifest set for an application identity.
type VersionService interface {
	GetManifest(ctx context.Context, identity Identity) (*ManifestSet, error)
}

// DeviceVersionStore reports the bundle version currently installed on the device.
type DeviceVersionStore interface {
	CurrentVersion(ctx context.Context) (int, error)
}

// BundleFetcher downloads and installs a bundle. When opts.RestartAfterInstall
// is set, a successful install schedules a host restart after opts.RestartDelay.
type BundleFetcher interface {
	Apply(ctx context.Context, url string, version int, opts ApplyOptions) error
}

// ReportingSink records a delivery outcome for a bundle.
type ReportingSink interface {
	Report(ctx context.Context, bundleID string, outcome Outcome) error
}

// PromptGateway drives the singleton loader and dialog surfaces.
type PromptGateway interface {
	ShowLoader(opts LoaderOptions)
	HideLoader()
	ShowDialog(opts DialogOptions)
	HideDialog()
}

// DeviceInfoProvider describes the device for failure reports.
type DeviceInfoProvider interface {
	DeviceInfo(ctx context.Context) DeviceInfo
}

// Collaborators are the capabilities the orchestrator composes.
type Collaborators struct {
	Versions VersionService
	Store    DeviceVersionStore
	Fetcher  BundleFetcher
	Reporter ReportingSink
	Prompts  PromptGateway
	Device   DeviceInfoProvider
}

const defaultReportTimeout = 15 * time.Second

// Orchestrator is the update decision and delivery state machine.
type Orchestrator struct {
	platform      Platform
	deps          Collaborators
	apply         ApplyOptions
	reportTimeout time.Duration
	loader        LoaderOptions
	dialog        DialogOptions
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithApplyOptions sets the restart behavior handed to the fetcher.
func WithApplyOptions(opts ApplyOptions) Option {
	return func(o *Orchestrator) {
		o.apply = opts
	}
}

// WithReportTimeout bounds how long a report may delay hiding the loader.
func WithReportTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.reportTimeout = d
		}
	}
}

// WithDefaultLoader sets loader options applied beneath each request's overrides.
func WithDefaultLoader(opts LoaderOptions) Option {
	return func(o *Orchestrator) {
		o.loader = opts.Merge(o.loader)
	}
}

// WithDefaultDialog sets dialog text applied beneath each request's overrides.
func WithDefaultDialog(opts DialogOptions) Option {
	return func(o *Orchestrator) {
		o.dialog = opts.Merge(o.dialog)
	}
}

// New builds an orchestrator. Every collaborator is required; Device may be nil,
// in which case failure reports carry an empty descriptor.
func New(platform Platform, deps Collaborators, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		platform: platform,
		deps:     deps,
		apply: ApplyOptions{
			RestartAfterInstall: true,
			RestartDelay:        DefaultRestartDelay,
		},
		reportTimeout: defaultReportTimeout,
		loader:        DefaultLoaderOptions,
		dialog:        DefaultUpdateDialog,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result summarizes one check for callers that want to log or test it.
type Result struct {
	CheckID   string
	Current   int
	Decision  Decision
	Confirmed bool
	Delivered bool
	Outcome   *Outcome
	// Err is why the check stopped before deciding, if it did. It is never returned as an error.
	Err error
}

// Check runs one update check. It never returns an error and never lets a panic
// escape: failures are logged and the host keeps running.
func (o *Orchestrator) Check(ctx context.Context, req CheckRequest) (result Result) {
	result.CheckID = uuid.NewString()
	entry := log.WithFields(log.Fields{"check": result.CheckID, "platform": o.platform})

	defer func() {
		if r := recover(); r != nil {
			entry.Errorf("OTA update check panicked: %v", r)
			result.Err = fmt.Errorf("update check panicked: %v", r)
		}
	}()

	if err := req.Identity.Validate(); err != nil {
		entry.Warnf("OTA update check skipped: %v", err)
		result.Err = err
		return result
	}

	set, err := o.deps.Versions.GetManifest(ctx, req.Identity)
	if err != nil {
		entry.Warnf("OTA update check failed: %v", err)
		result.Err = err
		return result
	}
	if set == nil {
		set = &ManifestSet{}
	}

	current, err := o.deps.Store.CurrentVersion(ctx)
	if err != nil {
		entry.Warnf("OTA update check failed: reading installed version: %v", err)
		result.Err = err
		return result
	}
	result.Current = current

	manifest := ManifestFor(*set, o.platform)
	decision := Decide(manifest, current)
	result.Decision = decision
	entry = entry.WithFields(log.Fields{"current": current, "remote": manifest.Version, "decision": decision.Kind})

	switch decision.Kind {
	case NoUpdate:
		if decision.Reason != "" {
			entry.Warnf("Ignoring update: %s", decision.Reason)
		} else {
			entry.Debug("Bundle is up to date")
		}
		return result
	case OptionalUpdate:
		if !o.confirm(ctx, entry, req.Dialog) {
			entry.Info("Optional update dismissed")
			return result
		}
		result.Confirmed = true
	case ForcedUpdate:
		entry.Info("Forced update, skipping confirmation")
	}

	outcome := o.deliver(ctx, entry, decision.Manifest, req.Loader)
	result.Delivered = true
	result.Outcome = &outcome
	return result
}

// confirm shows the dialog and waits for exactly one answer.
func (o *Orchestrator) confirm(ctx context.Context, entry *log.Entry, overrides *DialogOptions) bool {
	answer := make(chan bool, 1)
	send := func(v bool) func() {
		return func() {
			select {
			case answer <- v:
			default:
			}
		}
	}

	opts := o.dialog
	if overrides != nil {
		opts = overrides.Merge(o.dialog)
	}
	opts.OnConfirm = send(true)
	opts.OnCancel = send(false)

	entry.Debug("Asking user to confirm update")
	o.deps.Prompts.ShowDialog(opts)

	select {
	case confirmed := <-answer:
		return confirmed
	case <-ctx.Done():
		o.deps.Prompts.HideDialog()
		entry.Debugf("Stopped waiting for confirmation: %v", ctx.Err())
		return false
	}
}

// deliver runs loader -> apply -> report -> hide. The loader is hidden only
// after the report settles, whatever the report's own result.
func (o *Orchestrator) deliver(ctx context.Context, entry *log.Entry, m Manifest, overrides *LoaderOptions) Outcome {
	loader := o.loader
	if overrides != nil {
		loader = overrides.Merge(o.loader)
	}
	o.deps.Prompts.ShowLoader(loader)
	defer o.deps.Prompts.HideLoader()

	entry.Infof("Applying bundle %q version %d", m.BundleID, m.Version)

	apply := o.apply
	apply.BundleID = m.BundleID

	var outcome Outcome
	if err := o.deps.Fetcher.Apply(ctx, m.URL, m.Version, apply); err != nil {
		entry.Errorf("Bundle apply failed: %v", err)
		outcome = FailureOutcome(err, o.deviceInfo(ctx))
	} else {
		entry.Infof("Bundle version %d installed", m.Version)
		outcome = SuccessOutcome()
	}

	o.report(ctx, entry, m.BundleID, outcome)
	return outcome
}

func (o *Orchestrator) report(ctx context.Context, entry *log.Entry, bundleID string, outcome Outcome) {
	// A cancelled check must still report what happened to the bundle.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.reportTimeout)
	defer cancel()

	if err := o.deps.Reporter.Report(reportCtx, bundleID, outcome); err != nil {
		entry.Warnf("Failed to report %s for bundle %q: %v", outcome.Status, bundleID, err)
		return
	}
	entry.Debugf("Reported %s for bundle %q", outcome.Status, bundleID)
}

func (o *Orchestrator) deviceInfo(ctx context.Context) DeviceInfo {
	if o.deps.Device == nil {
		return DeviceInfo{}
	}
	return o.deps.Device.DeviceInfo(ctx)
}
