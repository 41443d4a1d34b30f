package ota

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// recorder keeps the cross-collaborator call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.list() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeVersions struct {
	rec *recorder
	set *ManifestSet
	err error
}

func (f *fakeVersions) GetManifest(_ context.Context, id Identity) (*ManifestSet, error) {
	f.rec.add("getManifest")
	return f.set, f.err
}

type fakeStore struct {
	version int
	err     error
}

func (f *fakeStore) CurrentVersion(context.Context) (int, error) {
	return f.version, f.err
}

type fakeFetcher struct {
	rec  *recorder
	err  error
	opts ApplyOptions
}

func (f *fakeFetcher) Apply(_ context.Context, url string, version int, opts ApplyOptions) error {
	f.rec.add("apply(%s,%d)", url, version)
	f.opts = opts
	return f.err
}

type fakeReporter struct {
	rec      *recorder
	err      error
	outcomes []Outcome
	ctxErr   error
}

func (f *fakeReporter) Report(ctx context.Context, bundleID string, outcome Outcome) error {
	f.rec.add("report(%s,%s)", bundleID, outcome.Status)
	f.outcomes = append(f.outcomes, outcome)
	f.ctxErr = ctx.Err()
	return f.err
}

type dialogAction int

const (
	holdDialog dialogAction = iota
	confirmDialog
	cancelDialog
)

type fakePrompts struct {
	rec     *recorder
	action  dialogAction
	dialogs []DialogOptions
	loaders []LoaderOptions
	shown   chan struct{}
}

func newFakePrompts(rec *recorder, action dialogAction) *fakePrompts {
	return &fakePrompts{rec: rec, action: action, shown: make(chan struct{}, 1)}
}

func (f *fakePrompts) ShowLoader(opts LoaderOptions) {
	f.rec.add("showLoader")
	f.loaders = append(f.loaders, opts)
}

func (f *fakePrompts) HideLoader() { f.rec.add("hideLoader") }

func (f *fakePrompts) ShowDialog(opts DialogOptions) {
	f.rec.add("showDialog")
	f.dialogs = append(f.dialogs, opts)
	select {
	case f.shown <- struct{}{}:
	default:
	}
	switch f.action {
	case confirmDialog:
		opts.OnConfirm()
	case cancelDialog:
		opts.OnCancel()
	}
}

func (f *fakePrompts) HideDialog() { f.rec.add("hideDialog") }

type fakeDevice struct{ info DeviceInfo }

func (f fakeDevice) DeviceInfo(context.Context) DeviceInfo { return f.info }

type harness struct {
	rec      *recorder
	versions *fakeVersions
	store    *fakeStore
	fetcher  *fakeFetcher
	reporter *fakeReporter
	prompts  *fakePrompts
	device   fakeDevice
}

func newHarness(set *ManifestSet, current int, action dialogAction) *harness {
	rec := &recorder{}
	return &harness{
		rec:      rec,
		versions: &fakeVersions{rec: rec, set: set},
		store:    &fakeStore{version: current},
		fetcher:  &fakeFetcher{rec: rec},
		reporter: &fakeReporter{rec: rec},
		prompts:  newFakePrompts(rec, action),
		device: fakeDevice{info: DeviceInfo{
			Model: "Pixel 8", Brand: "google", SystemName: "Android", SystemVersion: "14",
		}},
	}
}

func (h *harness) orchestrator(platform Platform, opts ...Option) *Orchestrator {
	return New(platform, Collaborators{
		Versions: h.versions,
		Store:    h.store,
		Fetcher:  h.fetcher,
		Reporter: h.reporter,
		Prompts:  h.prompts,
		Device:   h.device,
	}, opts...)
}

var validRequest = CheckRequest{Identity: Identity{
	ProjectKey:       "proj",
	IOSPackageID:     "com.example.ios",
	AndroidPackageID: "com.example.android",
}}

func androidSet(m Manifest) *ManifestSet {
	return &ManifestSet{Android: &m}
}

var errBoom = errors.New("boom")
