package fetcher

import (
	"appupdate-go/internal/bundlestore"
	"appupdate-go/internal/cstmerr"
	"appupdate-go/internal/ota"
	"appupdate-go/internal/shared"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Downloader fetches a remote file to a local path.
type Downloader interface {
	DownloadFileWithRetry(ctx context.Context, url, destinationPath string) error
}

// Registry records installed bundles.
type Registry interface {
	RecordInstall(ctx context.Context, b bundlestore.InstalledBundle) error
	Prune(ctx context.Context, keep int) ([]bundlestore.InstalledBundle, error)
}

// RestartFunc relaunches the host so it loads the newly installed bundle.
type RestartFunc func()

// Fetcher downloads bundle archives, extracts them into a versioned directory
// and registers the install.
type Fetcher struct {
	downloader  Downloader
	registry    Registry
	bundleDir   string
	downloadDir string
	keep        int
	restart     RestartFunc

	mu      sync.Mutex
	pending *time.Timer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRestart sets what runs RestartDelay after a successful install.
func WithRestart(fn RestartFunc) Option {
	return func(f *Fetcher) { f.restart = fn }
}

// WithKeep sets how many installed versions stay on disk.
func WithKeep(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.keep = n
		}
	}
}

func New(downloader Downloader, registry Registry, bundleDir, downloadDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		downloader:  downloader,
		registry:    registry,
		bundleDir:   bundleDir,
		downloadDir: downloadDir,
		keep:        2,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BundlePath is where version is extracted.
func (f *Fetcher) BundlePath(version int) string {
	return filepath.Join(f.bundleDir, strconv.Itoa(version))
}

// Apply downloads url, installs it as version and, when asked, schedules a restart.
// Every failure is an *cstmerr.ApplyError.
func (f *Fetcher) Apply(ctx context.Context, url string, version int, opts ota.ApplyOptions) error {
	if err := f.install(ctx, url, version, opts.BundleID); err != nil {
		return cstmerr.NewApplyError(version, err)
	}
	f.cleanup(ctx)

	if opts.RestartAfterInstall && f.restart != nil {
		f.scheduleRestart(opts.RestartDelay)
	}
	return nil
}

func (f *Fetcher) install(ctx context.Context, url string, version int, bundleID string) error {
	for _, dir := range []string{f.downloadDir, f.bundleDir} {
		if err := shared.CheckAndCreateDir(dir); err != nil {
			return err
		}
	}

	archive := filepath.Join(f.downloadDir, fmt.Sprintf("bundle-%d.zip", version))
	log.Infof("Downloading bundle version %d from %s", version, url)
	if err := f.downloader.DownloadFileWithRetry(ctx, url, archive); err != nil {
		return err
	}

	digest, err := shared.CalculateSHA256(archive)
	if err != nil {
		return err
	}

	target := f.BundlePath(version)
	staging := target + ".partial"
	if err := os.RemoveAll(staging); err != nil {
		return cstmerr.NewFileIOError("failed to clear staging directory", err)
	}
	if err := shared.UnzipFile(archive, staging); err != nil {
		os.RemoveAll(staging)
		// A corrupt archive must not be resumed on the next attempt.
		os.Remove(archive)
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		os.RemoveAll(staging)
		return cstmerr.NewFileIOError("failed to replace existing bundle directory", err)
	}
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		return cstmerr.NewFileIOError("failed to move bundle into place", err)
	}

	if err := f.registry.RecordInstall(ctx, bundlestore.InstalledBundle{
		Version:  version,
		BundleID: bundleID,
		Path:     target,
		SHA256:   digest,
	}); err != nil {
		return err
	}

	if err := os.Remove(archive); err != nil {
		log.Warnf("Failed to remove downloaded archive %s: %v", archive, err)
	}
	log.Infof("Bundle version %d extracted to %s (sha256 %s)", version, target, digest)
	return nil
}

// cleanup removes bundle directories beyond the keep window. Failures only log.
func (f *Fetcher) cleanup(ctx context.Context) {
	dropped, err := f.registry.Prune(ctx, f.keep)
	if err != nil {
		log.Warnf("Failed to prune old bundles: %v", err)
		return
	}
	for _, b := range dropped {
		if b.Path == "" {
			continue
		}
		if err := os.RemoveAll(b.Path); err != nil {
			log.Warnf("Failed to remove old bundle %s: %v", b.Path, err)
			continue
		}
		log.Debugf("Removed old bundle version %d", b.Version)
	}
}

// scheduleRestart replaces any restart that has not fired yet.
func (f *Fetcher) scheduleRestart(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending != nil {
		f.pending.Stop()
	}
	log.Infof("Restarting in %s to load the new bundle", delay)
	f.pending = time.AfterFunc(delay, f.restart)
}

// CancelRestart stops a scheduled restart that has not fired yet.
func (f *Fetcher) CancelRestart() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return false
	}
	stopped := f.pending.Stop()
	f.pending = nil
	return stopped
}
