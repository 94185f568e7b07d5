package introspect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/dep2p/go-netkit/internal/core/metrics"
	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Network 可选的网络管理器
	Network pkgif.NetworkManager

	// Download 可选的下载管理器
	Download pkgif.DownloadManager

	// WebRequest 可选的 Web 请求管理器
	WebRequest pkgif.WebRequestManager

	// Collector 可选的指标收集器，提供 /metrics 与带宽统计
	Collector *metrics.Collector

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config Config

	server   *http.Server
	listener net.Listener

	running   bool
	startTime time.Time

	mu sync.Mutex
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	return &Server{
		config: cfg,
	}
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Handler 返回服务的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/channels", s.handleChannels)
	mux.HandleFunc("/debug/introspect/tasks", s.handleTasks)
	mux.HandleFunc("/debug/introspect/bandwidth", s.handleBandwidth)
	mux.HandleFunc("/debug/introspect/runtime", s.handleRuntime)

	if s.config.Collector != nil {
		mux.Handle("/metrics", s.config.Collector.Handler())
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", s.handleHealth)

	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}
	return mux
}

// Stop 停止服务
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Channels  []ChannelInfo  `json:"channels,omitempty"`
	Tasks     *TasksInfo     `json:"tasks,omitempty"`
	Bandwidth *BandwidthInfo `json:"bandwidth,omitempty"`
	Runtime   *RuntimeInfo   `json:"runtime,omitempty"`
}

// ChannelInfo 网络频道信息
type ChannelInfo struct {
	Name                string `json:"name"`
	ServiceType         string `json:"service_type"`
	AddressFamily       string `json:"address_family"`
	Connected           bool   `json:"connected"`
	RemoteAddr          string `json:"remote_addr,omitempty"`
	SendPacketCount     int    `json:"send_packet_count"`
	SentPacketCount     int    `json:"sent_packet_count"`
	ReceivePacketCount  int    `json:"receive_packet_count"`
	ReceivedPacketCount int    `json:"received_packet_count"`
	MissHeartBeatCount  int    `json:"miss_heart_beat_count"`
	HeartBeatInterval   string `json:"heart_beat_interval"`
}

// PoolInfo 任务池信息
type PoolInfo struct {
	Paused       bool `json:"paused"`
	TotalAgents  int  `json:"total_agents"`
	FreeAgents   int  `json:"free_agents"`
	WorkingAgent int  `json:"working_agents"`
	WaitingTasks int  `json:"waiting_tasks"`
}

// TasksInfo 任务池汇总
type TasksInfo struct {
	Download      *PoolInfo `json:"download,omitempty"`
	DownloadSpeed float64   `json:"download_speed,omitempty"`
	WebRequest    *PoolInfo `json:"web_request,omitempty"`
}

// BandwidthInfo 带宽信息
type BandwidthInfo struct {
	TotalIn  int64   `json:"total_in"`
	TotalOut int64   `json:"total_out"`
	RateIn   float64 `json:"rate_in"`
	RateOut  float64 `json:"rate_out"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime,omitempty"`
	Channels  int       `json:"channels"`
	Connected int       `json:"connected"`
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, IntrospectResponse{
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
		Channels:  s.collectChannelInfo(),
		Tasks:     s.collectTasksInfo(),
		Bandwidth: s.collectBandwidthInfo(),
		Runtime:   s.collectRuntimeInfo(),
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.config.Network == nil {
		http.Error(w, "Network manager not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, s.collectChannelInfo())
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := s.collectTasksInfo()
	if info == nil {
		http.Error(w, "Task pools not available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, info)
}

func (s *Server) handleBandwidth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := s.collectBandwidthInfo()
	if info == nil {
		info = &BandwidthInfo{} // 返回空数据而不是错误
	}
	s.writeJSON(w, info)
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.collectRuntimeInfo())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
	}

	if s.config.Network == nil {
		health.Status = "degraded"
	} else {
		for _, ch := range s.collectChannelInfo() {
			health.Channels++
			if ch.Connected {
				health.Connected++
			}
		}
	}

	s.writeJSON(w, health)
}

// ============================================================================
//                              数据收集
// ============================================================================

func (s *Server) collectChannelInfo() []ChannelInfo {
	if s.config.Network == nil {
		return nil
	}

	channels := s.config.Network.NetworkChannels()
	infos := make([]ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		info := ChannelInfo{
			Name:                ch.Name(),
			ServiceType:         ch.ServiceType().String(),
			AddressFamily:       ch.AddressFamily().String(),
			Connected:           ch.Connected(),
			SendPacketCount:     ch.SendPacketCount(),
			SentPacketCount:     ch.SentPacketCount(),
			ReceivePacketCount:  ch.ReceivePacketCount(),
			ReceivedPacketCount: ch.ReceivedPacketCount(),
			MissHeartBeatCount:  ch.MissHeartBeatCount(),
			HeartBeatInterval:   ch.HeartBeatInterval().String(),
		}
		if conn := ch.Socket(); conn != nil {
			info.RemoteAddr = conn.RemoteAddr().String()
		}
		infos = append(infos, info)
	}
	return infos
}

// poolCounter 下载与 Web 请求管理器共有的任务池查询
type poolCounter interface {
	Paused() bool
	TotalAgentCount() int
	FreeAgentCount() int
	WorkingAgentCount() int
	WaitingTaskCount() int
}

func poolInfo(p poolCounter) *PoolInfo {
	return &PoolInfo{
		Paused:       p.Paused(),
		TotalAgents:  p.TotalAgentCount(),
		FreeAgents:   p.FreeAgentCount(),
		WorkingAgent: p.WorkingAgentCount(),
		WaitingTasks: p.WaitingTaskCount(),
	}
}

func (s *Server) collectTasksInfo() *TasksInfo {
	if s.config.Download == nil && s.config.WebRequest == nil {
		return nil
	}

	info := &TasksInfo{}
	if s.config.Download != nil {
		info.Download = poolInfo(s.config.Download)
		info.DownloadSpeed = s.config.Download.CurrentSpeed()
	}
	if s.config.WebRequest != nil {
		info.WebRequest = poolInfo(s.config.WebRequest)
	}
	return info
}

func (s *Server) collectBandwidthInfo() *BandwidthInfo {
	if s.config.Collector == nil {
		return nil
	}

	stats := s.config.Collector.Bandwidth().Totals()
	return &BandwidthInfo{
		TotalIn:  stats.TotalIn,
		TotalOut: stats.TotalOut,
		RateIn:   stats.RateIn,
		RateOut:  stats.RateOut,
	}
}

func (s *Server) collectRuntimeInfo() *RuntimeInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

// ============================================================================
//                              辅助方法
// ============================================================================

// writeJSON 写入 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
