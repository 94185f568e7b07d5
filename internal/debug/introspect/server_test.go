package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/download"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/network"
	"github.com/dep2p/go-netkit/pkg/lib/packet"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	server := New(cfg)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func getJSON(t *testing.T, server *Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNew(t *testing.T) {
	server := New(Config{})
	assert.NotNil(t, server)
	assert.Equal(t, DefaultAddr, server.config.Addr)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"}) // 使用随机端口

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)

	addr := server.Addr()
	assert.NotEmpty(t, addr)
	assert.NotEqual(t, "127.0.0.1:0", addr)

	// 重复启动应该无效
	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)

	// 重复停止应该无效
	require.NoError(t, server.Stop())
}

// TestServer_Health 测试健康检查统计频道连接数
func TestServer_Health(t *testing.T) {
	var health HealthResponse
	server := startServer(t, Config{})
	require.Equal(t, http.StatusOK, getJSON(t, server, "/health", &health))
	assert.Equal(t, "degraded", health.Status, "没有网络管理器")

	manager := network.NewManager(network.DefaultOptions())
	defer manager.Shutdown()
	_, err := manager.CreateNetworkChannel("game", pkgif.ServiceTCP, packet.NewCodec())
	require.NoError(t, err)

	server = startServer(t, Config{Network: manager})
	require.Equal(t, http.StatusOK, getJSON(t, server, "/health", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Channels)
	assert.Equal(t, 0, health.Connected)
	assert.NotEmpty(t, health.Uptime)
}

// TestServer_Channels 测试网络频道端点
func TestServer_Channels(t *testing.T) {
	server := startServer(t, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, server, "/debug/introspect/channels", nil))

	manager := network.NewManager(network.DefaultOptions())
	defer manager.Shutdown()
	for _, name := range []string{"game", "chat"} {
		_, err := manager.CreateNetworkChannel(name, pkgif.ServiceTCPWithSyncReceive, packet.NewCodec())
		require.NoError(t, err)
	}

	server = startServer(t, Config{Network: manager})
	var channels []ChannelInfo
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect/channels", &channels))
	require.Len(t, channels, 2)
	assert.Equal(t, "game", channels[0].Name)
	assert.Equal(t, "chat", channels[1].Name)
	assert.Equal(t, pkgif.ServiceTCPWithSyncReceive.String(), channels[0].ServiceType)
	assert.False(t, channels[0].Connected)
	assert.Empty(t, channels[0].RemoteAddr)
}

// TestServer_Tasks 测试任务池端点
func TestServer_Tasks(t *testing.T) {
	server := startServer(t, Config{})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, server, "/debug/introspect/tasks", nil))

	dm := download.NewManager(download.DefaultOptions())
	defer dm.Shutdown()
	dm.AddDownloadAgentHelper(download.NewHTTPHelper())
	dm.AddDownloadAgentHelper(download.NewHTTPHelper())
	dm.SetPaused(true)
	_, err := dm.AddDownload(t.TempDir()+"/a", "http://127.0.0.1:1/a", "", 0, nil)
	require.NoError(t, err)

	server = startServer(t, Config{Download: dm})
	var tasks TasksInfo
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect/tasks", &tasks))
	require.NotNil(t, tasks.Download)
	assert.Nil(t, tasks.WebRequest)
	assert.True(t, tasks.Download.Paused)
	assert.Equal(t, 2, tasks.Download.TotalAgents)
	assert.Equal(t, 1, tasks.Download.WaitingTasks)
}

// TestServer_MetricsAndBandwidth 测试指标与带宽端点
func TestServer_MetricsAndBandwidth(t *testing.T) {
	server := startServer(t, Config{})
	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "没有收集器时不注册 /metrics")

	var bandwidth BandwidthInfo
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect/bandwidth", &bandwidth))
	assert.Zero(t, bandwidth.TotalIn)

	collector := metrics.NewCollector("test", nil)
	collector.PacketsSent("game", 2, 1000)
	collector.PacketReceived("game", 2000)

	server = startServer(t, Config{Collector: collector})
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect/bandwidth", &bandwidth))
	assert.Equal(t, int64(2000), bandwidth.TotalIn)
	assert.Equal(t, int64(1000), bandwidth.TotalOut)

	resp, err = http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "packets_sent_total")
}

func TestServer_IntrospectEndpoint(t *testing.T) {
	server := startServer(t, Config{})

	var introspect IntrospectResponse
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect", &introspect))
	assert.NotEmpty(t, introspect.Uptime)
	assert.NotNil(t, introspect.Runtime)
	assert.Nil(t, introspect.Tasks)
}

func TestServer_RuntimeEndpoint(t *testing.T) {
	server := startServer(t, Config{})

	var runtime RuntimeInfo
	require.Equal(t, http.StatusOK, getJSON(t, server, "/debug/introspect/runtime", &runtime))
	assert.NotEmpty(t, runtime.GoVersion)
	assert.Greater(t, runtime.NumGoroutine, 0)
	assert.Greater(t, runtime.NumCPU, 0)
	assert.Greater(t, runtime.MemAlloc, uint64(0))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := startServer(t, Config{})

	// 使用 POST 方法（应该被拒绝）
	resp, err := http.Post("http://"+server.Addr()+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_CustomHandlers(t *testing.T) {
	customCalled := false
	server := startServer(t, Config{
		CustomHandlers: map[string]http.HandlerFunc{
			"/custom": func(w http.ResponseWriter, r *http.Request) {
				customCalled = true
				_, _ = w.Write([]byte("custom response"))
			},
		},
	})

	resp, err := http.Get("http://" + server.Addr() + "/custom")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, customCalled)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "custom response", string(body))
}

func TestServer_PprofEndpoint(t *testing.T) {
	server := startServer(t, Config{})

	resp, err := http.Get("http://" + server.Addr() + "/debug/pprof/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestModule 测试按配置启用自省服务
func TestModule(t *testing.T) {
	var server *Server
	app := fxtest.New(t, fx.Supply(config.NewConfig()), Module(), fx.Populate(&server))
	app.RequireStart()
	assert.Nil(t, server, "未配置监听地址时不创建服务")
	app.RequireStop()

	cfg := config.NewConfig()
	cfg.Metrics.ListenAddr = "127.0.0.1:0"
	app = fxtest.New(t, fx.Supply(cfg), Module(), fx.Populate(&server))
	app.RequireStart()
	require.NotNil(t, server)
	assert.True(t, server.running)
	app.RequireStop()
	assert.False(t, server.running)
}
