package apiclient

import (
	"context"
	"io"
	"net/http"
)

// RequestOptions holds options for an HTTP request.
type RequestOptions struct {
	Headers     map[string]string
	QueryParams map[string]string
	Body        any // JSON marshaled by the adapter
	// Files maps multipart field names to local file paths. Setting it turns the request into multipart/form-data.
	Files     map[string]string
	FormData  map[string]string
	AuthToken string // sent as a Bearer token
}

// Response represents a general HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	RequestURL string
}

// IsSuccess checks if the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StreamResponse is for responses where the body is streamed, e.g., file downloads.
type StreamResponse struct {
	StatusCode    int
	Body          io.ReadCloser // caller must close it
	Headers       http.Header
	ContentLength int64 // -1 when unknown
	RequestURL    string
}

// IsSuccess checks if the status code is in the 2xx range.
func (sr *StreamResponse) IsSuccess() bool {
	return sr.StatusCode >= 200 && sr.StatusCode < 300
}

// HTTPClient defines the interface for a generic HTTP client.
// Bodies are never decoded by the implementation; callers decode Response.Body themselves.
type HTTPClient interface {
	Get(ctx context.Context, url string, opts *RequestOptions) (*Response, error)

	// Post sends opts.Body as JSON, or a multipart form when opts.Files is set.
	Post(ctx context.Context, url string, opts *RequestOptions) (*Response, error)

	Head(ctx context.Context, url string, opts *RequestOptions) (*Response, error)

	// GetStream performs a GET and hands back the unread body. The caller closes StreamResponse.Body.
	GetStream(ctx context.Context, url string, opts *RequestOptions) (*StreamResponse, error)
}
