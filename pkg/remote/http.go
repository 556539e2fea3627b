package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

type HttpFetcher struct {
	url    string
	client *http.Client
}

func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func NewHttpFetcher(uri string) (*HttpFetcher, error) {
	return &HttpFetcher{url: uri, client: http.DefaultClient}, nil
}

func (h *HttpFetcher) Fetch(ctx context.Context, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	return rangeRequest(h.client, "http.Get", req, startOffset, endOffset)
}

// rangeRequest performs req with a Range header and returns the response body.
func rangeRequest(client *http.Client, op string, req *http.Request, startOffset *int64, endOffset *int64) (io.ReadCloser, error) {
	rangeHeader := buildRange(startOffset, endOffset)
	if rangeHeader != nil {
		req.Header.Set("Range", *rangeHeader)
	}
	start := time.Now()
	response, err := client.Do(req)
	tookMs := time.Since(start).Milliseconds()
	if err != nil {
		slog.Error(op, "range", rangeHeader, "url", req.URL.Redacted(), "took_ms", tookMs, "error", err)
		return nil, err
	}
	switch response.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		if rangeHeader != nil {
			// the body is the whole object, not the requested range
			_ = response.Body.Close()
			slog.Warn(op, "range", rangeHeader, "url", req.URL.Redacted(), "took_ms", tookMs, "error", "range ignored")
			return nil, fmt.Errorf("%w: HTTP %d, server ignored range %s",
				ErrUnexpectedStatus, response.StatusCode, *rangeHeader)
		}
	case http.StatusNotFound:
		_ = response.Body.Close()
		slog.Warn(op, "range", rangeHeader, "url", req.URL.Redacted(), "took_ms", tookMs, "error", "NotFound")
		return nil, ErrDoesNotExist
	default:
		_ = response.Body.Close()
		slog.Warn(op, "range", rangeHeader, "url", req.URL.Redacted(), "took_ms", tookMs, "status", response.StatusCode)
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, response.StatusCode)
	}
	slog.Debug(op, "range", rangeHeader, "url", req.URL.Redacted(), "took_ms", tookMs, "error", nil)
	return response.Body, nil
}
