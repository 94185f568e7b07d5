// Package interfaces 定义 netkit 公共接口
//
// 本文件定义下载管理器接口。
package interfaces

import "time"

// DownloadSink 下载结果接收方
//
// 由下载代理实现，DownloadAgentHelper 在任意协程上回调。
type DownloadSink interface {
	// UpdateBytes 收到一段数据
	UpdateBytes(data []byte)

	// Complete 下载完成，length 为本次请求收到的总字节数
	Complete(length int64)

	// Error 下载失败；deleteDownloading 为 true 时删除已下载的临时文件
	Error(err error, deleteDownloading bool)
}

// DownloadAgentHelper 下载代理辅助器
type DownloadAgentHelper interface {
	// Download 从 fromPosition 开始下载 uri，结果写入 sink
	Download(uri string, fromPosition int64, sink DownloadSink)

	// Reset 中止当前下载并重置
	Reset()
}

// DownloadStartEvent 下载开始事件
type DownloadStartEvent struct {
	SerialID      int
	DownloadPath  string
	DownloadURI   string
	CurrentLength int64
	UserData      any
}

// DownloadUpdateEvent 下载进度更新事件
type DownloadUpdateEvent struct {
	SerialID      int
	DownloadPath  string
	DownloadURI   string
	CurrentLength int64
	UserData      any
}

// DownloadSuccessEvent 下载成功事件
type DownloadSuccessEvent struct {
	SerialID      int
	DownloadPath  string
	DownloadURI   string
	CurrentLength int64
	UserData      any
}

// DownloadFailureEvent 下载失败事件
type DownloadFailureEvent struct {
	SerialID     int
	DownloadPath string
	DownloadURI  string
	Err          error
	UserData     any
}

// DownloadManager 下载管理器
type DownloadManager interface {
	Updater

	// Paused 是否暂停调度
	Paused() bool

	// SetPaused 设置是否暂停调度
	SetPaused(paused bool)

	// TotalAgentCount 代理总数
	TotalAgentCount() int

	// FreeAgentCount 空闲代理数
	FreeAgentCount() int

	// WorkingAgentCount 工作中的代理数
	WorkingAgentCount() int

	// WaitingTaskCount 等待中的任务数
	WaitingTaskCount() int

	// FlushSize 写入磁盘的缓冲区大小
	FlushSize() int

	// SetFlushSize 设置写入磁盘的缓冲区大小
	SetFlushSize(size int)

	// Timeout 下载超时时长
	Timeout() time.Duration

	// SetTimeout 设置下载超时时长
	SetTimeout(timeout time.Duration)

	// CurrentSpeed 当前下载速度（字节/秒）
	CurrentSpeed() float64

	// AddDownloadAgentHelper 增加下载代理辅助器
	AddDownloadAgentHelper(helper DownloadAgentHelper)

	// AddDownload 增加下载任务，返回任务序列号
	AddDownload(downloadPath, downloadURI, tag string, priority int, userData any) (int, error)

	// DownloadInfo 获取下载任务信息
	DownloadInfo(serialID int) (TaskInfo, bool)

	// DownloadInfos 获取指定标签的下载任务信息
	DownloadInfos(tag string) []TaskInfo

	// AllDownloadInfos 获取所有下载任务信息
	AllDownloadInfos() []TaskInfo

	// RemoveDownload 移除下载任务
	RemoveDownload(serialID int) bool

	// RemoveDownloads 移除指定标签的下载任务
	RemoveDownloads(tag string) int

	// RemoveAllDownloads 移除所有下载任务
	RemoveAllDownloads() int

	// OnStart 订阅下载开始事件
	OnStart(handler func(DownloadStartEvent)) func()

	// OnUpdate 订阅下载进度事件
	OnUpdate(handler func(DownloadUpdateEvent)) func()

	// OnSuccess 订阅下载成功事件
	OnSuccess(handler func(DownloadSuccessEvent)) func()

	// OnFailure 订阅下载失败事件
	OnFailure(handler func(DownloadFailureEvent)) func()

	// Shutdown 关闭下载管理器
	Shutdown() error
}
