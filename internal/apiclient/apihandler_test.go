package apiclient

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/cstmerr"
	"appupdate-go/internal/ota"
	SharedModels "appupdate-go/internal/shared"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = ota.Identity{
	ProjectKey:       "proj-key",
	IOSPackageID:     "com.example.ios",
	AndroidPackageID: "com.example.android",
}

func newTestClient(t *testing.T, srv *httptest.Server) *APIClient {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL:      srv.URL + "/api/",
		RequestTimeout:  5 * time.Second,
		DownloadRetries: 2,
	}
	return New(cfg, WithRetryInterval(10*time.Millisecond))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestGetManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects/get-bundle", r.URL.Path)
		assert.Equal(t, "proj-key", r.URL.Query().Get("key"))
		assert.Equal(t, "com.example.ios", r.URL.Query().Get("iosPackage"))
		assert.Equal(t, "com.example.android", r.URL.Query().Get("androidPackage"))
		writeJSON(w, http.StatusOK, `{"android":{"version":5,"forceUpdate":true,"url":"https://cdn/b.zip","bundleId":"b1"},"ios":null}`)
	}))
	defer srv.Close()

	set, err := newTestClient(t, srv).GetManifest(context.Background(), testIdentity)
	require.NoError(t, err)
	require.NotNil(t, set.Android)
	assert.Nil(t, set.IOS)
	assert.Equal(t, SharedModels.Manifest{Version: 5, ForceUpdate: true, URL: "https://cdn/b.zip", BundleID: "b1"}, *set.Android)
}

func TestGetManifestPartialFieldsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ios":{"version":2}}`)
	}))
	defer srv.Close()

	set, err := newTestClient(t, srv).GetManifest(context.Background(), testIdentity)
	require.NoError(t, err)
	require.NotNil(t, set.IOS)
	assert.Equal(t, 2, set.IOS.Version)
	assert.False(t, set.IOS.ForceUpdate)
	assert.Empty(t, set.IOS.URL)
}

func TestGetManifestMalformedBody(t *testing.T) {
	for name, body := range map[string]string{"garbage": "not json", "empty": ""} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).GetManifest(context.Background(), testIdentity)
			var parseErr *cstmerr.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestGetManifestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"project not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).GetManifest(context.Background(), testIdentity)
	var apiErr *cstmerr.APIRequestFailedError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "project not found", apiErr.Message)
}

func TestGetManifestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := newTestClient(t, srv)
	srv.Close()

	_, err := client.GetManifest(context.Background(), testIdentity)
	var netErr *cstmerr.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestReport(t *testing.T) {
	var got ReportPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bundles/b1/count", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()
	client := newTestClient(t, srv)

	outcome := ota.FailureOutcome(cstmerr.NewDownloadError("status 500"), ota.DeviceInfo{
		Model: "SM-S911B", Brand: "samsung", SystemName: "Android", SystemVersion: "14",
	})
	require.NoError(t, client.Report(context.Background(), "b1", outcome))

	assert.Equal(t, "failure", got.Status)
	assert.Contains(t, got.Error, "status 500")
	require.NotNil(t, got.DeviceInfo)
	assert.Equal(t, "samsung", got.DeviceInfo.Brand)

	require.NoError(t, client.Report(context.Background(), "b1", ota.SuccessOutcome()))
	assert.Equal(t, "success", got.Status)
	assert.Nil(t, got.DeviceInfo)
}

func TestReportRejectsEmptyBundleID(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Report(context.Background(), "", ota.SuccessOutcome())
	var cfgErr *cstmerr.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestReportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Report(context.Background(), "b1", ota.SuccessOutcome())
	var apiErr *cstmerr.APIRequestFailedError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unknown error from API", apiErr.Message)
}

func bundleServer(t *testing.T, content []byte, failFirst int32) (*httptest.Server, *int32) {
	t.Helper()
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && atomic.AddInt32(&gets, 1) <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		http.ServeContent(w, r, "bundle.zip", time.Time{}, bytes.NewReader(content))
	}))
	return srv, &gets
}

func TestDownloadFile(t *testing.T) {
	content := bytes.Repeat([]byte("bundle"), 1024)
	srv, _ := bundleServer(t, content, 0)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "bundle.zip")
	require.NoError(t, newTestClient(t, srv).DownloadFile(context.Background(), srv.URL+"/bundle.zip", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadFileResumes(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 500)
	srv, _ := bundleServer(t, content, 0)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, os.WriteFile(dest, content[:1234], 0644))

	require.NoError(t, newTestClient(t, srv).DownloadFile(context.Background(), srv.URL+"/bundle.zip", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadFileRetries(t *testing.T) {
	content := []byte("zip bytes")
	srv, gets := bundleServer(t, content, 2)
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, newTestClient(t, srv).DownloadFileWithRetry(context.Background(), srv.URL+"/bundle.zip", dest))
	assert.Equal(t, int32(3), atomic.LoadInt32(gets))
}

func TestDownloadFileGivesUp(t *testing.T) {
	srv, gets := bundleServer(t, nil, 100)
	defer srv.Close()

	err := newTestClient(t, srv).DownloadFileWithRetry(context.Background(), srv.URL+"/bundle.zip", filepath.Join(t.TempDir(), "b.zip"))
	var retryErr *cstmerr.RetryError
	require.ErrorAs(t, err, &retryErr)
	var dlErr *cstmerr.DownloadError
	assert.ErrorAs(t, err, &dlErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(gets))
}

func TestDownloadFileOutlastsRequestTimeout(t *testing.T) {
	chunk := bytes.Repeat([]byte("z"), 1024)
	const chunks = 10
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(chunks*len(chunk)))
		w.WriteHeader(http.StatusOK)
		for i := 0; i < chunks; i++ {
			_, _ = w.Write(chunk)
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer srv.Close()

	cfg := &config.Config{
		APIBaseURL:      srv.URL + "/api/",
		RequestTimeout:  150 * time.Millisecond,
		DownloadRetries: 0,
	}
	dest := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, New(cfg).DownloadFileWithRetry(context.Background(), srv.URL+"/bundle.zip", dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(chunks*len(chunk)), info.Size())
}

func TestDownloadFileStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := newTestClient(t, srv).DownloadFile(ctx, srv.URL+"/bundle.zip", filepath.Join(t.TempDir(), "b.zip"))
	require.Error(t, err)
}

func TestUploadBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bundles", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "proj-1", r.FormValue("projectId"))
		assert.Equal(t, "production", r.FormValue("environment"))
		assert.Equal(t, "android", r.FormValue("platform"))
		assert.Equal(t, "1.2.3", r.FormValue("version"))
		assert.Equal(t, "42", r.FormValue("buildNumber"))
		assert.Equal(t, "true", r.FormValue("forceUpdate"))

		f, hdr, err := r.FormFile("bundle")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "index.android.bundle.zip", hdr.Filename)
		assert.Equal(t, "zipdata", string(data))

		writeJSON(w, http.StatusCreated, `{"id":"bundle-9"}`)
	}))
	defer srv.Close()

	archive := filepath.Join(t.TempDir(), "index.android.bundle.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zipdata"), 0644))

	resp, err := newTestClient(t, srv).UploadBundle(context.Background(), SharedModels.UploadRequest{
		FilePath:    archive,
		ProjectID:   "proj-1",
		Environment: "production",
		Platform:    "android",
		Version:     "1.2.3",
		BuildNumber: 42,
		ForceUpdate: true,
		APIToken:    "secret-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "bundle-9", resp["id"])
}

func TestUploadBundleRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"invalid token"}`)
	}))
	defer srv.Close()

	archive := filepath.Join(t.TempDir(), "main.jsbundle.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zipdata"), 0644))

	_, err := newTestClient(t, srv).UploadBundle(context.Background(), SharedModels.UploadRequest{
		FilePath: archive, Platform: "ios", APIToken: "bad",
	})
	var upErr *cstmerr.UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "ios", upErr.Platform)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestUploadBundleMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t, srv).UploadBundle(context.Background(), SharedModels.UploadRequest{
		FilePath: filepath.Join(t.TempDir(), "missing.zip"), Platform: "android",
	})
	var ioErr *cstmerr.FileIOError
	assert.ErrorAs(t, err, &ioErr)
}
