package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "netkit"

// Collector Prometheus 指标收集器
//
// Collector 实现 Reporter，同时维护一个 BandwidthCounter 供快照与速率查询。
// 每个 Collector 使用独立的 Registry，不污染全局默认注册表。
type Collector struct {
	registry  *prometheus.Registry
	bandwidth *BandwidthCounter

	packetsSent     *prometheus.CounterVec
	packetsReceived *prometheus.CounterVec
	bytesSent       *prometheus.CounterVec
	bytesReceived   *prometheus.CounterVec
	channelErrors   *prometheus.CounterVec
	missHeartBeats  *prometheus.CounterVec

	waitingTasks  *prometheus.GaugeVec
	workingAgents *prometheus.GaugeVec
	freeAgents    *prometheus.GaugeVec

	downloadedBytes prometheus.Counter

	// 快照用的累计值
	sentTotal     atomic.Int64
	receivedTotal atomic.Int64
	errorTotal    atomic.Int64
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, clk clock.Clock) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	channelCounter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      name,
			Help:      help,
		}, append([]string{"channel"}, labels...))
	}
	poolGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "taskpool",
			Name:      name,
			Help:      help,
		}, []string{"pool"})
	}

	c := &Collector{
		registry:  prometheus.NewRegistry(),
		bandwidth: NewBandwidthCounter(clk),

		packetsSent:     channelCounter("packets_sent_total", "Packets flushed to the socket."),
		packetsReceived: channelCounter("packets_received_total", "Packets received and decoded."),
		bytesSent:       channelCounter("bytes_sent_total", "Bytes flushed to the socket."),
		bytesReceived:   channelCounter("bytes_received_total", "Bytes of received packets."),
		channelErrors:   channelCounter("errors_total", "Channel errors by code.", "code"),
		missHeartBeats:  channelCounter("missed_heartbeats_total", "Heartbeats sent while the previous one was unanswered."),

		waitingTasks:  poolGauge("waiting_tasks", "Tasks waiting for an agent."),
		workingAgents: poolGauge("working_agents", "Agents holding a task."),
		freeAgents:    poolGauge("free_agents", "Idle agents."),

		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Bytes written by download agents.",
		}),
	}

	c.registry.MustRegister(
		c.packetsSent,
		c.packetsReceived,
		c.bytesSent,
		c.bytesReceived,
		c.channelErrors,
		c.missHeartBeats,
		c.waitingTasks,
		c.workingAgents,
		c.freeAgents,
		c.downloadedBytes,
	)
	return c
}

// Registry 返回指标注册表
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Bandwidth 返回带宽计数器
func (c *Collector) Bandwidth() *BandwidthCounter { return c.bandwidth }

// Handler 返回 /metrics HTTP 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// PacketsSent 实现 Reporter
func (c *Collector) PacketsSent(channel string, packets int, bytes int64) {
	c.packetsSent.WithLabelValues(channel).Add(float64(packets))
	c.bytesSent.WithLabelValues(channel).Add(float64(bytes))
	c.bandwidth.LogSent(channel, bytes)
	c.sentTotal.Add(int64(packets))
}

// PacketReceived 实现 Reporter
func (c *Collector) PacketReceived(channel string, bytes int64) {
	c.packetsReceived.WithLabelValues(channel).Inc()
	c.bytesReceived.WithLabelValues(channel).Add(float64(bytes))
	c.bandwidth.LogRecv(channel, bytes)
	c.receivedTotal.Add(1)
}

// ChannelError 实现 Reporter
func (c *Collector) ChannelError(channel string, code string) {
	c.channelErrors.WithLabelValues(channel, code).Inc()
	c.errorTotal.Add(1)
}

// MissHeartBeat 实现 Reporter
func (c *Collector) MissHeartBeat(channel string, _ int) {
	c.missHeartBeats.WithLabelValues(channel).Inc()
}

// TaskPoolState 实现 Reporter
func (c *Collector) TaskPoolState(pool string, waiting, working, free int) {
	c.waitingTasks.WithLabelValues(pool).Set(float64(waiting))
	c.workingAgents.WithLabelValues(pool).Set(float64(working))
	c.freeAgents.WithLabelValues(pool).Set(float64(free))
}

// DownloadedBytes 实现 Reporter
func (c *Collector) DownloadedBytes(n int64) {
	c.downloadedBytes.Add(float64(n))
}
