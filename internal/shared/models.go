package shared

// Manifest matches the per-platform JSON descriptor of the latest bundle.
// Absent fields decode to their zero values, which are also the documented defaults.
type Manifest struct {
	Version     int    `json:"version"`
	ForceUpdate bool   `json:"forceUpdate"`
	URL         string `json:"url"`
	BundleID    string `json:"bundleId"`
}

// ManifestSet is the get-bundle response: one manifest per platform, either may be null.
type ManifestSet struct {
	Android *Manifest `json:"android"`
	IOS     *Manifest `json:"ios"`
}

// ManifestErr matches the JSON structure for API error messages.
type ManifestErr struct {
	Message string `json:"message"`
}

// DeviceInfo is the device descriptor attached to failure reports.
type DeviceInfo struct {
	Model         string `json:"model"`
	Brand         string `json:"brand"`
	SystemName    string `json:"systemName"`
	SystemVersion string `json:"systemVersion"`
}

// Report status values accepted by the bundles/{id}/count endpoint.
const (
	ReportStatusSuccess = "success"
	ReportStatusFailure = "failure"
)

// ReportPayload matches the JSON body of a delivery report.
type ReportPayload struct {
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	DeviceInfo *DeviceInfo `json:"deviceInfo,omitempty"`
}

// UploadRequest carries the multipart fields of a bundle upload.
type UploadRequest struct {
	FilePath    string
	ProjectID   string
	Environment string
	Platform    string
	Version     string
	BuildNumber int
	ForceUpdate bool
	APIToken    string
}

// UploadResponse is whatever JSON the server returns for an accepted upload.
type UploadResponse map[string]any
