package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

// DefaultChunkSize 每次读取响应体的最大字节数
const DefaultChunkSize = 32 * 1024

// HTTPHelper 基于 net/http 的下载代理辅助器
//
// 从断点开始时发送 Range 请求。SpeedLimit 大于 0 时按字节/秒限速。
type HTTPHelper struct {
	client     *http.Client
	userAgent  string
	speedLimit int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ pkgif.DownloadAgentHelper = (*HTTPHelper)(nil)

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

// WithSpeedLimit 设置限速（字节/秒），0 表示不限速
func WithSpeedLimit(bytesPerSecond int) HTTPOption {
	return func(h *HTTPHelper) { h.speedLimit = bytesPerSecond }
}

// NewHTTPHelper 创建 HTTP 下载代理辅助器
func NewHTTPHelper(opts ...HTTPOption) *HTTPHelper {
	h := &HTTPHelper{client: http.DefaultClient}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Download 在新协程中下载 uri
func (h *HTTPHelper) Download(uri string, fromPosition int64, sink pkgif.DownloadSink) {
	h.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	go func() {
		defer close(done)
		h.run(ctx, uri, fromPosition, sink)
	}()
}

// Reset 中止当前下载并等待下载协程退出
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

func (h *HTTPHelper) run(ctx context.Context, uri string, from int64, sink pkgif.DownloadSink) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		sink.Error(fmt.Errorf("build request: %w", err), false)
		return
	}
	if from > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", from))
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			sink.Error(err, false)
		}
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent:
	case resp.StatusCode == http.StatusOK && from == 0:
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// 无法续传，删除临时文件后由调用方重新下载
		sink.Error(fmt.Errorf("%w: %s", ErrRangeUnsupported, resp.Status), true)
		return
	default:
		sink.Error(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status}, false)
		return
	}

	chunk := DefaultChunkSize
	var limiter *rate.Limiter
	if h.speedLimit > 0 {
		if h.speedLimit < chunk {
			chunk = h.speedLimit
		}
		limiter = rate.NewLimiter(rate.Limit(h.speedLimit), chunk)
	}

	buf := make([]byte, chunk)
	var total int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return
				}
			}
			sink.UpdateBytes(buf[:n])
			total += int64(n)
		}

		if errors.Is(rerr, io.EOF) {
			sink.Complete(total)
			return
		}
		if rerr != nil {
			if ctx.Err() == nil {
				sink.Error(rerr, false)
			}
			return
		}
	}
}
