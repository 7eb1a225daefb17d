package mediastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/valyala/fasthttp"
)

const chunkSize = 32 * 1024

// HTTPFetcher downloads plain URL locators with a streamed fasthttp body.
type HTTPFetcher struct {
	client  *fasthttp.Client
	timeout time.Duration
	maxSize int64
}

func NewHTTPFetcher(timeout time.Duration, maxSize int64) *HTTPFetcher {
	return &HTTPFetcher{
		client: &fasthttp.Client{
			Name:               "az-wrap",
			StreamResponseBody: true,
			ReadTimeout:        timeout,
			WriteTimeout:       timeout,
		},
		timeout: timeout,
		maxSize: maxSize,
	}
}

func (h *HTTPFetcher) Supports(loc media.Locator) bool {
	return strings.HasPrefix(loc.URL, "http://") || strings.HasPrefix(loc.URL, "https://")
}

func (h *HTTPFetcher) Fetch(ctx context.Context, loc media.Locator, onProgress func(loaded, total int64)) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(loc.URL)
	req.Header.SetMethod(fasthttp.MethodGet)

	var err error
	if deadline, ok := h.deadline(ctx); ok {
		err = h.client.DoDeadline(req, resp, deadline)
	} else {
		err = h.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", loc.URL, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status %d", loc.URL, code)
	}

	total := int64(resp.Header.ContentLength())
	if total < 0 {
		total = -1
	}
	if h.maxSize > 0 && total > h.maxSize {
		return nil, fmt.Errorf("GET %s: %d bytes exceeds limit %d", loc.URL, total, h.maxSize)
	}

	body := resp.BodyStream()
	if body == nil {
		data := append([]byte(nil), resp.Body()...)
		report(onProgress, int64(len(data)), total)
		return data, nil
	}

	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if h.maxSize > 0 && int64(buf.Len()) > h.maxSize {
				return nil, fmt.Errorf("GET %s: body exceeds limit %d", loc.URL, h.maxSize)
			}
			report(onProgress, int64(buf.Len()), total)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("GET %s: %w", loc.URL, rerr)
		}
	}
	return buf.Bytes(), nil
}

// deadline is the earlier of the context deadline and the configured timeout.
func (h *HTTPFetcher) deadline(ctx context.Context) (time.Time, bool) {
	d, ok := ctx.Deadline()
	if h.timeout > 0 {
		if t := time.Now().Add(h.timeout); !ok || t.Before(d) {
			return t, true
		}
	}
	return d, ok
}

func report(fn func(loaded, total int64), loaded, total int64) {
	if fn != nil {
		fn(loaded, total)
	}
}
