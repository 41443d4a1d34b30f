package ota

import (
	"appupdate-go/internal/cstmerr"
	SharedModels "appupdate-go/internal/shared"
	"fmt"
	"runtime"
	"strings"
	"time"
)

type Manifest = SharedModels.Manifest
type ManifestSet = SharedModels.ManifestSet
type DeviceInfo = SharedModels.DeviceInfo

// Platform names the manifest a device consults.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform accepts "android" or "ios" in any case.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case Android:
		return Android, nil
	case IOS:
		return IOS, nil
	}
	return "", cstmerr.NewConfigError(fmt.Sprintf("unknown platform %q (want android or ios)", s), nil)
}

// DetectPlatform maps the running GOOS to a platform when it is a mobile one.
func DetectPlatform() (Platform, bool) {
	switch runtime.GOOS {
	case "android":
		return Android, true
	case "ios":
		return IOS, true
	}
	return "", false
}

// ManifestFor selects the platform manifest, defaulting a missing one to the zero Manifest.
func ManifestFor(set ManifestSet, platform Platform) Manifest {
	var m *Manifest
	switch platform {
	case Android:
		m = set.Android
	case IOS:
		m = set.IOS
	}
	if m == nil {
		return Manifest{}
	}
	return *m
}

// Identity is the application identity a check queries with.
type Identity struct {
	ProjectKey       string
	IOSPackageID     string
	AndroidPackageID string
}

// NewIdentity trims and validates the three required identifiers.
func NewIdentity(projectKey, iosPackageID, androidPackageID string) (Identity, error) {
	id := Identity{
		ProjectKey:       strings.TrimSpace(projectKey),
		IOSPackageID:     strings.TrimSpace(iosPackageID),
		AndroidPackageID: strings.TrimSpace(androidPackageID),
	}
	return id, id.Validate()
}

func (id Identity) Validate() error {
	var missing []string
	if id.ProjectKey == "" {
		missing = append(missing, "key")
	}
	if id.IOSPackageID == "" {
		missing = append(missing, "iosPackage")
	}
	if id.AndroidPackageID == "" {
		missing = append(missing, "androidPackage")
	}
	if len(missing) > 0 {
		return cstmerr.NewConfigError("missing required identity fields: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// LoaderOptions configure the blocking loader. Zero fields fall back to defaults.
type LoaderOptions struct {
	Text            string
	Color           string
	BackgroundColor string
	TextColor       string
}

var DefaultLoaderOptions = LoaderOptions{
	Color:           "#2563EB",
	BackgroundColor: "rgba(0,0,0,0.3)",
	TextColor:       "#fff",
}

// Merge returns o with every empty field taken from base.
func (o LoaderOptions) Merge(base LoaderOptions) LoaderOptions {
	return LoaderOptions{
		Text:            firstNonEmpty(o.Text, base.Text),
		Color:           firstNonEmpty(o.Color, base.Color),
		BackgroundColor: firstNonEmpty(o.BackgroundColor, base.BackgroundColor),
		TextColor:       firstNonEmpty(o.TextColor, base.TextColor),
	}
}

// DialogOptions configure the confirmation dialog. Exactly one of OnConfirm or
// OnCancel is invoked per ShowDialog.
type DialogOptions struct {
	Title        string
	Message      string
	ConfirmText  string
	CancelText   string
	OverlayColor string

	OnConfirm func()
	OnCancel  func()
}

// DefaultUpdateDialog is the text shown for an optional update.
var DefaultUpdateDialog = DialogOptions{
	Title:        "Update Available!",
	Message:      "A newer version is ready to install.",
	ConfirmText:  "Update",
	CancelText:   "Cancel",
	OverlayColor: "rgba(0,0,0,0.3)",
}

// Merge returns o's text with every empty field taken from base. Callbacks are kept from o.
func (o DialogOptions) Merge(base DialogOptions) DialogOptions {
	return DialogOptions{
		Title:        firstNonEmpty(o.Title, base.Title),
		Message:      firstNonEmpty(o.Message, base.Message),
		ConfirmText:  firstNonEmpty(o.ConfirmText, base.ConfirmText),
		CancelText:   firstNonEmpty(o.CancelText, base.CancelText),
		OverlayColor: firstNonEmpty(o.OverlayColor, base.OverlayColor),
		OnConfirm:    o.OnConfirm,
		OnCancel:     o.OnCancel,
	}
}

// ApplyOptions are handed to the fetcher with every delivery.
type ApplyOptions struct {
	// BundleID is set per delivery from the manifest.
	BundleID            string
	RestartAfterInstall bool
	RestartDelay        time.Duration
}

const DefaultRestartDelay = time.Second

// CheckRequest is the per-check configuration surface.
type CheckRequest struct {
	Identity Identity
	Loader   *LoaderOptions
	Dialog   *DialogOptions
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
