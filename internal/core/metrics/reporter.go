package metrics

// Reporter 记录网络频道与任务池指标
//
// 网络频道的 IO 协程与驱动循环都会调用，实现必须并发安全。
type Reporter interface {
	// PacketsSent 一次合并发送完成
	PacketsSent(channel string, packets int, bytes int64)

	// PacketReceived 收到一个完整消息包
	PacketReceived(channel string, bytes int64)

	// ChannelError 频道发生错误
	ChannelError(channel string, code string)

	// MissHeartBeat 频道丢失心跳
	MissHeartBeat(channel string, count int)

	// TaskPoolState 任务池状态
	TaskPoolState(pool string, waiting, working, free int)

	// DownloadedBytes 下载写入的字节数
	DownloadedBytes(n int64)
}

// Discard 丢弃所有指标
type Discard struct{}

func (Discard) PacketsSent(string, int, int64) {}
func (Discard) PacketReceived(string, int64) {}
func (Discard) ChannelError(string, string) {}
func (Discard) MissHeartBeat(string, int) {}
func (Discard) TaskPoolState(string, int, int, int) {}
func (Discard) DownloadedBytes(int64) {}

// 确保实现 Reporter 接口
var (
	_ Reporter = Discard{}
	_ Reporter = (*Collector)(nil)
)
