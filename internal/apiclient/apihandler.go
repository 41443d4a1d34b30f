package apiclient

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/cstmerr"
	"appupdate-go/internal/ota"
	SharedModels "appupdate-go/internal/shared"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

type ManifestSet = SharedModels.ManifestSet
type ManifestErr = SharedModels.ManifestErr
type ReportPayload = SharedModels.ReportPayload

const (
	manifestPath = "projects/get-bundle"
	bundlesPath  = "bundles"
)

// APIClient talks to the bundle distribution API.
type APIClient struct {
	client        HTTPClient
	baseURL       string
	retries       uint64
	retryInterval time.Duration
}

// Option configures an APIClient.
type Option func(*APIClient)

// WithRetries sets how many times a failed download is retried.
func WithRetries(n uint64) Option {
	return func(ac *APIClient) { ac.retries = n }
}

// WithRetryInterval sets the initial backoff between download attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(ac *APIClient) {
		if d > 0 {
			ac.retryInterval = d
		}
	}
}

// WithHTTPClient replaces the resty adapter.
func WithHTTPClient(c HTTPClient) Option {
	return func(ac *APIClient) { ac.client = c }
}

// New creates a new APIClient from the loaded configuration.
func New(cfg *config.Config, opts ...Option) *APIClient {
	ac := &APIClient{
		baseURL:       cfg.APIBaseURL,
		retries:       cfg.DownloadRetries,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(ac)
	}
	if ac.client == nil {
		ac.client = NewRestyAdapter(cfg.RequestTimeout)
	}
	return ac
}

func (ac *APIClient) endpoint(path string) string {
	return strings.TrimRight(ac.baseURL, "/") + "/" + path
}

// GetManifest fetches the per-platform manifests for an application identity.
func (ac *APIClient) GetManifest(ctx context.Context, identity ota.Identity) (*ManifestSet, error) {
	target := ac.endpoint(manifestPath)
	log.Debugf("Checking for updates at: %s", target)

	opts := &RequestOptions{
		Headers: map[string]string{"Accept": "application/json"},
		QueryParams: map[string]string{
			"key":            identity.ProjectKey,
			"iosPackage":     identity.IOSPackageID,
			"androidPackage": identity.AndroidPackageID,
		},
	}

	resp, err := ac.client.Get(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		return nil, cstmerr.NewAPIRequestFailedError(resp.StatusCode, apiErrorMessage(resp.Body))
	}

	var set ManifestSet
	if err := json.Unmarshal(resp.Body, &set); err != nil {
		return nil, cstmerr.NewParseError(fmt.Sprintf("manifest response from %s", target), err)
	}

	log.Debugf("Received manifests: android=%+v ios=%+v", set.Android, set.IOS)
	return &set, nil
}

// Report posts a delivery outcome to bundles/{bundleID}/count.
func (ac *APIClient) Report(ctx context.Context, bundleID string, outcome ota.Outcome) error {
	if bundleID == "" {
		return cstmerr.NewConfigError("cannot report without a bundle id", nil)
	}

	payload := ReportPayload{
		Status:     string(outcome.Status),
		Error:      outcome.ErrorDetail,
		DeviceInfo: outcome.Device,
	}
	target := ac.endpoint(bundlesPath + "/" + url.PathEscape(bundleID) + "/count")
	log.Debugf("Reporting %s to %s", payload.Status, target)

	resp, err := ac.client.Post(ctx, target, &RequestOptions{
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return cstmerr.NewAPIRequestFailedError(resp.StatusCode, apiErrorMessage(resp.Body))
	}
	return nil
}

// UploadBundle sends a zipped bundle as multipart/form-data to the bundles endpoint.
func (ac *APIClient) UploadBundle(ctx context.Context, req SharedModels.UploadRequest) (SharedModels.UploadResponse, error) {
	target := ac.endpoint(bundlesPath)
	log.Infof("Uploading %s bundle %s to %s", req.Platform, req.FilePath, target)

	if _, err := os.Stat(req.FilePath); err != nil {
		return nil, cstmerr.NewUploadError(req.Platform, cstmerr.NewFileIOError("bundle archive "+req.FilePath, err))
	}

	resp, err := ac.client.Post(ctx, target, &RequestOptions{
		Files: map[string]string{"bundle": req.FilePath},
		FormData: map[string]string{
			"projectId":   req.ProjectID,
			"environment": req.Environment,
			"platform":    req.Platform,
			"version":     req.Version,
			"buildNumber": strconv.Itoa(req.BuildNumber),
			"forceUpdate": strconv.FormatBool(req.ForceUpdate),
		},
		AuthToken: req.APIToken,
	})
	if err != nil {
		return nil, cstmerr.NewUploadError(req.Platform, err)
	}
	if !resp.IsSuccess() {
		return nil, cstmerr.NewUploadError(req.Platform, cstmerr.NewAPIRequestFailedError(resp.StatusCode, apiErrorMessage(resp.Body)))
	}

	out := SharedModels.UploadResponse{}
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			log.Warnf("Upload accepted but response was not JSON: %s", string(resp.Body))
		}
	}
	return out, nil
}

func apiErrorMessage(body []byte) string {
	var apiErr ManifestErr
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(body) == 0 {
		return "Unknown error from API"
	}
	return string(body)
}

// DownloadFileWithRetry retries DownloadFile with exponential backoff. Each attempt resumes
// from whatever the previous one left on disk.
func (ac *APIClient) DownloadFileWithRetry(ctx context.Context, fileURL, destinationPath string) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := ac.DownloadFile(ctx, fileURL, destinationPath)
		if err == nil {
			return nil
		}
		var fsErr *cstmerr.FileSystemError
		var ioErr *cstmerr.FileIOError
		if errors.As(err, &fsErr) || errors.As(err, &ioErr) {
			return backoff.Permanent(err)
		}
		log.Warnf("Download attempt %d of %s failed: %v", attempt, fileURL, err)
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = ac.retryInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, ac.retries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return cstmerr.NewRetryError(fmt.Sprintf("download of %s failed after %d attempt(s)", fileURL, attempt), err)
	}
	return nil
}

// DownloadFile downloads a file from the given URL to the destination path.
// It resumes a partial file when the server advertises byte ranges.
func (ac *APIClient) DownloadFile(ctx context.Context, fileURL, destinationPath string) error {
	log.Debugf("Attempting to download from %s to %s", fileURL, destinationPath)

	parentDir := filepath.Dir(destinationPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return cstmerr.NewFileSystemError(fmt.Sprintf("failed to create parent directory %s for download: %v", parentDir, err))
	}

	// Step 1: HEAD for size and range support. Signed storage URLs often reject HEAD,
	// so a failure here only disables resuming.
	var totalSize int64
	supportsRange := false
	headResp, err := ac.client.Head(ctx, fileURL, nil)
	switch {
	case err != nil:
		log.Debugf("HEAD request for download failed, downloading without resume: %v", err)
	case headResp.StatusCode != http.StatusOK && headResp.StatusCode != http.StatusPartialContent:
		log.Debugf("HEAD request returned %d, downloading without resume", headResp.StatusCode)
	default:
		sizeHeader := headResp.Headers.Get("X-Content-Length")
		if sizeHeader == "" {
			sizeHeader = headResp.Headers.Get("Content-Length")
		}
		totalSize, _ = strconv.ParseInt(sizeHeader, 10, 64)
		supportsRange = headResp.Headers.Get("Accept-Ranges") == "bytes"
	}
	log.Debugf("File size: %d, Supports range: %t", totalSize, supportsRange)

	// Step 2: current partial size.
	var currentOffset int64
	fileInfo, err := os.Stat(destinationPath)
	if err == nil {
		currentOffset = fileInfo.Size()
	} else if !os.IsNotExist(err) {
		return cstmerr.NewFileSystemError(fmt.Sprintf("failed to get metadata for existing file %s: %v", destinationPath, err))
	}

	if supportsRange && totalSize > 0 && currentOffset == totalSize {
		log.Infof("File %s already fully downloaded (%d bytes).", destinationPath, currentOffset)
		return nil
	}
	if totalSize > 0 && currentOffset > totalSize {
		currentOffset = 0
	}

	// Step 3: GET, ranged when resuming.
	streamOpts := &RequestOptions{Headers: map[string]string{}}
	openMode := os.O_TRUNC | os.O_CREATE | os.O_WRONLY
	if currentOffset > 0 && supportsRange {
		log.Infof("Resuming download from offset %d", currentOffset)
		streamOpts.Headers["Range"] = fmt.Sprintf("bytes=%d-", currentOffset)
		openMode = os.O_APPEND | os.O_WRONLY | os.O_CREATE
	} else {
		currentOffset = 0
	}

	streamResp, err := ac.client.GetStream(ctx, fileURL, streamOpts)
	if err != nil {
		return err
	}
	defer streamResp.Body.Close()

	if streamResp.StatusCode != http.StatusOK && streamResp.StatusCode != http.StatusPartialContent {
		return cstmerr.NewDownloadError(fmt.Sprintf("download request failed with status: %d", streamResp.StatusCode))
	}

	// 200 to a ranged request means the server sent the whole file.
	if streamResp.StatusCode == http.StatusOK && currentOffset > 0 {
		log.Info("Server responded with 200 OK despite a Range request, restarting download.")
		openMode = os.O_TRUNC | os.O_CREATE | os.O_WRONLY
		currentOffset = 0
	}

	destFile, err := os.OpenFile(destinationPath, openMode, 0644)
	if err != nil {
		return cstmerr.NewFileIOError(fmt.Sprintf("failed to open/create destination file %s", destinationPath), err)
	}
	defer destFile.Close()

	bytesWritten, err := io.Copy(destFile, streamResp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return cstmerr.NewTimeoutError(err)
		}
		return cstmerr.NewDownloadError(fmt.Sprintf("error reading download stream or writing to file: %v", err))
	}
	if streamResp.ContentLength >= 0 && bytesWritten != streamResp.ContentLength {
		return cstmerr.NewDownloadError(fmt.Sprintf("download of %s truncated: got %d of %d bytes", fileURL, bytesWritten, streamResp.ContentLength))
	}
	if totalSize == 0 && streamResp.ContentLength >= 0 {
		totalSize = currentOffset + streamResp.ContentLength
	}

	log.Infof("Downloaded %d bytes to %s (%d of %d on disk)", bytesWritten, destinationPath, currentOffset+bytesWritten, totalSize)
	return nil
}
