package download

import (
	"time"

	"github.com/dep2p/go-netkit/internal/core/taskpool"
)

// downloadingSuffix 下载中临时文件的后缀
const downloadingSuffix = ".download"

// Task 下载任务
type Task struct {
	taskpool.TaskBase

	path      string
	uri       string
	flushSize int
	timeout   time.Duration
}

// Initialize 初始化下载任务
func (t *Task) Initialize(serialID int, path, uri, tag string, priority int, userData any, flushSize int, timeout time.Duration) {
	t.TaskBase.Initialize(serialID, tag, priority, userData)
	t.path = path
	t.uri = uri
	t.flushSize = flushSize
	t.timeout = timeout
}

// Path 下载完成后的文件路径
func (t *Task) Path() string { return t.path }

// DownloadingPath 下载中的临时文件路径
func (t *Task) DownloadingPath() string { return t.path + downloadingSuffix }

// URI 下载地址
func (t *Task) URI() string { return t.uri }

// FlushSize 写入磁盘的缓冲区大小
func (t *Task) FlushSize() int { return t.flushSize }

// Timeout 下载超时时长，不大于 0 表示不超时
func (t *Task) Timeout() time.Duration { return t.timeout }

// Description 任务描述
func (t *Task) Description() string { return t.uri }

// Clear 清理任务，供引用池回收
func (t *Task) Clear() {
	t.TaskBase.Clear()
	t.path = ""
	t.uri = ""
	t.flushSize = 0
	t.timeout = 0
}
