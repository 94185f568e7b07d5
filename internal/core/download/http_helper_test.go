package download

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netkit/config"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var content = []byte(strings.Repeat("0123456789", 1000))

// recordingSink 记录 HTTPHelper 的回调
type recordingSink struct {
	mu       sync.Mutex
	data     bytes.Buffer
	complete int64
	err      error
	deleted  bool
	done     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) UpdateBytes(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Write(data)
}

func (s *recordingSink) Complete(length int64) {
	s.mu.Lock()
	s.complete = length
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) Error(err error, deleteDownloading bool) {
	s.mu.Lock()
	s.err = err
	s.deleted = deleteDownloading
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("等待下载结果超时")
	}
}

func contentServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.bin", time.Time{}, bytes.NewReader(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestHTTPHelper_Download 测试完整下载与 Range 续传
func TestHTTPHelper_Download(t *testing.T) {
	srv := contentServer(t)
	h := NewHTTPHelper(WithUserAgent("netkit-test"))

	full := newRecordingSink()
	h.Download(srv.URL, 0, full)
	full.wait(t)
	require.NoError(t, full.err)
	assert.Equal(t, content, full.data.Bytes())
	assert.Equal(t, int64(len(content)), full.complete)

	partial := newRecordingSink()
	h.Download(srv.URL, 5, partial)
	partial.wait(t)
	require.NoError(t, partial.err)
	assert.Equal(t, content[5:], partial.data.Bytes())

	t.Log("✅ HTTP 下载测试通过")
}

// TestHTTPHelper_RangeUnsupported 测试服务端忽略 Range 时删除临时文件
func TestHTTPHelper_RangeUnsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	sink := newRecordingSink()
	NewHTTPHelper().Download(srv.URL, 5, sink)
	sink.wait(t)

	assert.ErrorIs(t, sink.err, ErrRangeUnsupported)
	assert.True(t, sink.deleted)
}

// TestHTTPHelper_Status 测试错误状态码
func TestHTTPHelper_Status(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	sink := newRecordingSink()
	NewHTTPHelper().Download(srv.URL, 0, sink)
	sink.wait(t)

	var statusErr *StatusError
	require.ErrorAs(t, sink.err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, sink.deleted)
}

// TestHTTPHelper_Reset 测试 Reset 中止进行中的下载
func TestHTTPHelper_Reset(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	sink := newRecordingSink()
	h := NewHTTPHelper()
	h.Download(srv.URL, 0, sink)
	<-started

	h.Reset()
	h.Reset()

	select {
	case <-sink.done:
		t.Fatal("中止后不应再回调结果")
	default:
	}
}

// TestHTTPHelper_SpeedLimit 测试限速下仍能完整下载
func TestHTTPHelper_SpeedLimit(t *testing.T) {
	srv := contentServer(t)

	sink := newRecordingSink()
	NewHTTPHelper(WithSpeedLimit(1<<20)).Download(srv.URL, 0, sink)
	sink.wait(t)

	require.NoError(t, sink.err)
	assert.Equal(t, content, sink.data.Bytes())
}

// TestManager_HTTPDownload 测试管理器配合 HTTPHelper 的续传下载
func TestManager_HTTPDownload(t *testing.T) {
	srv := contentServer(t)
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path+downloadingSuffix, content[:100], 0o644))

	m := newTestManager(t, NewHTTPHelper())
	m.SetFlushSize(1024)
	assert.Equal(t, 1024, m.FlushSize())

	var success []pkgif.DownloadSuccessEvent
	var failure []pkgif.DownloadFailureEvent
	m.OnSuccess(func(e pkgif.DownloadSuccessEvent) { success = append(success, e) })
	m.OnFailure(func(e pkgif.DownloadFailureEvent) { failure = append(failure, e) })

	_, err := m.AddDownload(path, srv.URL+"/file.bin", "", 0, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m.Update(0, 10*time.Millisecond)
		return len(success)+len(failure) > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Empty(t, failure)
	assert.Equal(t, int64(len(content)), success[0].CurrentLength)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

// TestModule 测试 fx 模块
func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Download.AgentCount = 2
	cfg.Download.Timeout = config.Duration(time.Minute)

	var manager pkgif.DownloadManager
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&manager),
	)
	app.RequireStart()

	assert.Equal(t, 2, manager.TotalAgentCount())
	assert.Equal(t, time.Minute, manager.Timeout())

	app.RequireStop()
	_, err := manager.AddDownload("a", "http://x/a", "", 0, nil)
	assert.ErrorIs(t, err, ErrManagerShutdown)
}
