package webrequest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// DefaultContentType POST 请求的默认 Content-Type
const DefaultContentType = "application/octet-stream"

// HTTPHelper 基于 net/http 的 Web 请求代理辅助器
type HTTPHelper struct {
	client      *http.Client
	userAgent   string
	contentType string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ pkgif.WebRequestAgentHelper = (*HTTPHelper)(nil)

// HTTPOption HTTPHelper 选项
type HTTPOption func(*HTTPHelper)

// WithClient 设置 HTTP 客户端
func WithClient(client *http.Client) HTTPOption {
	return func(h *HTTPHelper) {
		if client != nil {
			h.client = client
		}
	}
}

// WithUserAgent 设置 User-Agent
func WithUserAgent(userAgent string) HTTPOption {
	return func(h *HTTPHelper) { h.userAgent = userAgent }
}

// WithContentType 设置 POST 请求的 Content-Type
func WithContentType(contentType string) HTTPOption {
	return func(h *HTTPHelper) { h.contentType = contentType }
}

// NewHTTPHelper 创建 HTTP Web 请求代理辅助器
func NewHTTPHelper(opts ...HTTPOption) *HTTPHelper {
	h := &HTTPHelper{
		client:      http.DefaultClient,
		contentType: DefaultContentType,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Request 在新协程中发起请求
func (h *HTTPHelper) Request(uri string, postData []byte, sink pkgif.WebRequestSink) {
	h.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	go func() {
		defer close(done)
		h.run(ctx, uri, postData, sink)
	}()
}

// Reset 中止当前请求并等待请求协程退出
func (h *HTTPHelper) Reset() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *HTTPHelper) run(ctx context.Context, uri string, postData []byte, sink pkgif.WebRequestSink) {
	method := http.MethodGet
	var body io.Reader
	if postData != nil {
		method = http.MethodPost
		body = bytes.NewReader(postData)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		sink.Error(fmt.Errorf("build request: %w", err))
		return
	}
	if postData != nil {
		req.Header.Set("Content-Type", h.contentType)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			sink.Error(err)
		}
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil {
			sink.Error(fmt.Errorf("read response: %w", err))
		}
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sink.Error(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: data})
		return
	}
	sink.Complete(data)
}
