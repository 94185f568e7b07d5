// Package interfaces 定义 netkit 公共接口
//
// 本文件定义 Web 请求管理器接口。
package interfaces

import "time"

// WebRequestSink Web 请求结果接收方
type WebRequestSink interface {
	// Complete 请求成功
	Complete(data []byte)

	// Error 请求失败
	Error(err error)
}

// WebRequestAgentHelper Web 请求代理辅助器
type WebRequestAgentHelper interface {
	// Request 发起请求；postData 为 nil 时使用 GET，否则使用 POST
	Request(uri string, postData []byte, sink WebRequestSink)

	// Reset 中止当前请求并重置
	Reset()
}

// WebRequestStartEvent Web 请求开始事件
type WebRequestStartEvent struct {
	SerialID      int
	WebRequestURI string
	UserData      any
}

// WebRequestSuccessEvent Web 请求成功事件
type WebRequestSuccessEvent struct {
	SerialID      int
	WebRequestURI string
	Data          []byte
	UserData      any
}

// WebRequestFailureEvent Web 请求失败事件
type WebRequestFailureEvent struct {
	SerialID      int
	WebRequestURI string
	Err           error
	UserData      any
}

// WebRequestManager Web 请求管理器
type WebRequestManager interface {
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

	// Timeout 请求超时时长
	Timeout() time.Duration

	// SetTimeout 设置请求超时时长
	SetTimeout(timeout time.Duration)

	// AddWebRequestAgentHelper 增加 Web 请求代理辅助器
	AddWebRequestAgentHelper(helper WebRequestAgentHelper)

	// AddWebRequest 增加 Web 请求任务，返回任务序列号
	AddWebRequest(webRequestURI string, postData []byte, tag string, priority int, userData any) (int, error)

	// WebRequestInfo 获取 Web 请求任务信息
	WebRequestInfo(serialID int) (TaskInfo, bool)

	// WebRequestInfos 获取指定标签的 Web 请求任务信息
	WebRequestInfos(tag string) []TaskInfo

	// AllWebRequestInfos 获取所有 Web 请求任务信息
	AllWebRequestInfos() []TaskInfo

	// RemoveWebRequest 移除 Web 请求任务
	RemoveWebRequest(serialID int) bool

	// RemoveWebRequests 移除指定标签的 Web 请求任务
	RemoveWebRequests(tag string) int

	// RemoveAllWebRequests 移除所有 Web 请求任务
	RemoveAllWebRequests() int

	// OnStart 订阅请求开始事件
	OnStart(handler func(WebRequestStartEvent)) func()

	// OnSuccess 订阅请求成功事件
	OnSuccess(handler func(WebRequestSuccessEvent)) func()

	// OnFailure 订阅请求失败事件
	OnFailure(handler func(WebRequestFailureEvent)) func()

	// Shutdown 关闭 Web 请求管理器
	Shutdown() error
}
