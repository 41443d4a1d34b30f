package apiclient

import (
	"appupdate-go/internal/cstmerr"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"
)

// RestyAdapter implements the HTTPClient interface using the resty library.
type RestyAdapter struct {
	client *resty.Client
}

// NewRestyAdapter creates a RestyAdapter with the default transport settings.
// A positive timeout bounds every request except GetStream end to end.
func NewRestyAdapter(timeout time.Duration) *RestyAdapter {
	transportSettings := &resty.TransportSettings{
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 60 * time.Second,
	}
	client := resty.NewWithTransportSettings(transportSettings)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &RestyAdapter{client: client}
}

// Close releases idle connections held by the underlying client.
func (ra *RestyAdapter) Close() error {
	return ra.client.Close()
}

func (ra *RestyAdapter) buildRequest(ctx context.Context, opts *RequestOptions) *resty.Request {
	req := ra.client.R().SetContext(ctx)
	if opts == nil {
		return req
	}
	if opts.Headers != nil {
		req.SetHeaders(opts.Headers)
	}
	if opts.QueryParams != nil {
		req.SetQueryParams(opts.QueryParams)
	}
	if opts.AuthToken != "" {
		req.SetAuthToken(opts.AuthToken)
	}
	if len(opts.Files) > 0 {
		for field, path := range opts.Files {
			req.SetFile(field, path)
		}
		if opts.FormData != nil {
			req.SetMultipartFormData(opts.FormData)
		}
	} else if opts.Body != nil {
		req.SetBody(opts.Body)
	}
	return req
}

// requestError classifies a transport failure: deadline hits become TimeoutError, the rest NetworkError.
func requestError(method, url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return cstmerr.NewTimeoutError(fmt.Errorf("HTTP %s %s: %w", method, url, err))
	}
	return cstmerr.NewNetworkError(fmt.Sprintf("HTTP %s request to %s failed", method, url), err)
}

func toResponse(restyResp *resty.Response) *Response {
	return &Response{
		StatusCode: restyResp.StatusCode(),
		Body:       restyResp.Bytes(),
		Headers:    restyResp.Header(),
		RequestURL: restyResp.Request.URL,
	}
}

// Get implements the HTTPClient interface Get method.
func (ra *RestyAdapter) Get(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	restyResp, err := ra.buildRequest(ctx, opts).Get(url)
	if err != nil {
		return nil, requestError("GET", url, err)
	}
	return toResponse(restyResp), nil
}

// Post implements the HTTPClient interface Post method.
func (ra *RestyAdapter) Post(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	restyResp, err := ra.buildRequest(ctx, opts).Post(url)
	if err != nil {
		return nil, requestError("POST", url, err)
	}
	return toResponse(restyResp), nil
}

// Head implements the HTTPClient interface Head method.
func (ra *RestyAdapter) Head(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	var headOpts *RequestOptions
	if opts != nil {
		headOpts = &RequestOptions{Headers: opts.Headers, QueryParams: opts.QueryParams, AuthToken: opts.AuthToken}
	}
	restyResp, err := ra.buildRequest(ctx, headOpts).Head(url)
	if err != nil {
		return nil, cstmerr.NewHeadError(fmt.Sprintf("HTTP HEAD request to %s failed: %v", url, err))
	}
	return &Response{
		StatusCode: restyResp.StatusCode(),
		Headers:    restyResp.Header(),
		RequestURL: restyResp.Request.URL,
	}, nil
}

// GetStream implements the HTTPClient interface GetStream method.
func (ra *RestyAdapter) GetStream(ctx context.Context, url string, opts *RequestOptions) (*StreamResponse, error) {
	var streamOpts *RequestOptions
	if opts != nil {
		streamOpts = &RequestOptions{Headers: opts.Headers, QueryParams: opts.QueryParams, AuthToken: opts.AuthToken}
	}
	// The body is read after Get returns, so the client timeout would cut off
	// slow transfers. Only ctx bounds a stream.
	restyReq := ra.buildRequest(ctx, streamOpts).SetTimeout(0)
	// Leave the body unread and open for the caller.
	restyReq.SetDoNotParseResponse(true)

	restyResp, err := restyReq.Get(url)
	if err != nil {
		return nil, cstmerr.NewDownloadError(fmt.Sprintf("HTTP GET (stream) request to %s failed: %v", url, err))
	}

	contentLength, parseErr := strconv.ParseInt(restyResp.Header().Get("Content-Length"), 10, 64)
	if parseErr != nil {
		contentLength = -1
	}

	return &StreamResponse{
		StatusCode:    restyResp.StatusCode(),
		Body:          restyResp.RawResponse.Body,
		Headers:       restyResp.Header(),
		ContentLength: contentLength,
		RequestURL:    restyResp.Request.URL,
	}, nil
}
