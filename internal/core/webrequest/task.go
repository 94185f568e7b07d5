package webrequest

import (
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-netkit/internal/core/taskpool"
)

// Task Web 请求任务
type Task struct {
	taskpool.TaskBase

	requestID uuid.UUID
	uri       string
	postData  []byte
	timeout   time.Duration
}

// Initialize 初始化 Web 请求任务
func (t *Task) Initialize(serialID int, uri string, postData []byte, tag string, priority int, userData any, timeout time.Duration) {
	t.TaskBase.Initialize(serialID, tag, priority, userData)
	t.requestID = uuid.New()
	t.uri = uri
	t.postData = postData
	t.timeout = timeout
}

// RequestID 请求标识，用于日志关联
func (t *Task) RequestID() uuid.UUID { return t.requestID }

// URI 请求地址
func (t *Task) URI() string { return t.uri }

// PostData 请求体，为 nil 时使用 GET
func (t *Task) PostData() []byte { return t.postData }

// Timeout 请求超时时长，不大于 0 表示不超时
func (t *Task) Timeout() time.Duration { return t.timeout }

// Description 任务描述
func (t *Task) Description() string { return t.uri }

// Clear 清理任务，供引用池回收
func (t *Task) Clear() {
	t.TaskBase.Clear()
	t.requestID = uuid.Nil
	t.uri = ""
	t.postData = nil
	t.timeout = 0
}
