// Package main 提供 netkit 命令行入口
//
// 子命令：
//
//	netkit serve    -listen 127.0.0.1:9000          # 回显服务端
//	netkit echo     -addr 127.0.0.1:9000 -msg hi    # 通过网络频道发送并等待回显
//	netkit download -url <URL> -out <path>          # 断点续传下载
//	netkit fetch    -url <URL> [-data <body>]       # GET / POST 请求
//	netkit version
//
// 全局参数写在子命令之前，例如 netkit -preset server -metrics 127.0.0.1:6060 serve。
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dep2p/go-netkit"
	log "github.com/dep2p/go-netkit/internal/util/logger"
	pkgif "github.com/dep2p/go-netkit/pkg/interfaces"
	"github.com/dep2p/go-netkit/pkg/lib/packet"
)

var logger = log.Logger("netkit/cmd")

// echoPacketID 回显消息包编号，包体为 StringValue
const echoPacketID uint16 = 1

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configFile  string
	preset      string
	metricsAddr string
	logFile     string
	logLevel    string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	g := &globalFlags{}
	fs := flag.NewFlagSet("netkit", flag.ContinueOnError)
	fs.StringVar(&g.configFile, "config", "", "配置文件路径（.json / .yaml）")
	fs.StringVar(&g.preset, "preset", "", "预设配置 (mobile/desktop/server/minimal)")
	fs.StringVar(&g.metricsAddr, "metrics", "", "自省与 /metrics HTTP 监听地址")
	fs.StringVar(&g.logFile, "log", "", "日志文件路径")
	fs.StringVar(&g.logLevel, "log-level", "", "日志级别，如 info 或 core/network=debug,info")
	fs.Usage = func() { printHelp(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if fs.NArg() == 0 {
		printHelp(fs)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "serve":
		return runServe(ctx, rest)
	case "echo":
		return runEcho(ctx, g, rest)
	case "download":
		return runDownload(ctx, g, rest)
	case "fetch":
		return runFetch(ctx, g, rest)
	case "version":
		fmt.Println(netkit.VersionInfo())
		return nil
	default:
		printHelp(fs)
		return fmt.Errorf("未知命令: %s", cmd)
	}
}

func printHelp(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "用法: netkit [全局参数] <serve|echo|download|fetch|version> [参数]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "全局参数:")
	fs.PrintDefaults()
}

// startKit 按全局参数创建并启动 Kit
func startKit(ctx context.Context, g *globalFlags) (*netkit.Kit, error) {
	kit, err := netkit.Start(ctx, buildOptions(g)...)
	if err != nil {
		return nil, err
	}
	if addr := kit.IntrospectAddr(); addr != "" {
		fmt.Printf("自省服务: http://%s/debug/introspect\n", addr)
	}
	return kit, nil
}

// ============================================================================
//                              serve
// ============================================================================

// runServe 启动回显服务端
//
// 服务端按 packet 格式拆帧，逐帧原样写回，心跳帧同样回显。
func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:9000", "监听地址")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", *listen, err)
	}
	fmt.Printf("回显服务已启动: %s，按 Ctrl+C 退出\n", ln.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				serveConn(ctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

func serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	logger.Info("客户端已连接", "remote", conn.RemoteAddr())
	codec := newEchoCodec()
	header := make([]byte, packet.HeaderLength)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn("读取包头失败", "remote", conn.RemoteAddr(), "err", err)
			}
			break
		}
		h, _, err := codec.DeserializePacketHeader(bytes.NewReader(header))
		if err != nil {
			logger.Warn("包头无效，断开连接", "remote", conn.RemoteAddr(), "err", err)
			break
		}

		frame := make([]byte, packet.HeaderLength+h.PacketLength())
		copy(frame, header)
		if _, err := io.ReadFull(conn, frame[packet.HeaderLength:]); err != nil {
			logger.Warn("读取包体失败", "remote", conn.RemoteAddr(), "err", err)
			break
		}
		if _, err := conn.Write(frame); err != nil {
			logger.Warn("回显失败", "remote", conn.RemoteAddr(), "err", err)
			break
		}
	}
	logger.Info("客户端已断开", "remote", conn.RemoteAddr())
}

func newEchoCodec() *packet.Codec {
	codec := packet.NewCodec()
	_ = codec.Register(echoPacketID, func() proto.Message { return &wrapperspb.StringValue{} })
	return codec
}

// ============================================================================
//                              echo
// ============================================================================

// runEcho 通过网络频道发送消息并等待回显
func runEcho(ctx context.Context, g *globalFlags, args []string) error {
	fs := flag.NewFlagSet("echo", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:9000", "回显服务地址")
	msg := fs.String("msg", "Hello, netkit!", "发送的消息")
	count := fs.Int("count", 3, "发送次数")
	timeout := fs.Duration("timeout", 10*time.Second, "整体超时")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", *addr)
	if err != nil {
		return fmt.Errorf("解析地址失败: %w", err)
	}

	kit, err := startKit(ctx, g)
	if err != nil {
		return err
	}
	defer func() { _ = kit.Close() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	connected := make(chan struct{}, 1)
	echoed := make(chan string, *count)
	failed := make(chan error, 1)

	nm := kit.Network()
	nm.OnConnected(func(e pkgif.NetworkConnectedEvent) { connected <- struct{}{} })
	nm.OnError(func(e pkgif.NetworkErrorEvent) {
		select {
		case failed <- fmt.Errorf("%s: %s", e.Code, e.Message):
		default:
		}
	})

	ch, err := nm.CreateNetworkChannel("echo", pkgif.ServiceTCP, newEchoCodec())
	if err != nil {
		return err
	}
	if err := ch.RegisterHandler(packet.HandlerFunc(echoPacketID, func(_ pkgif.NetworkChannel, m *packet.Message) {
		echoed <- m.Body.(*wrapperspb.StringValue).GetValue()
	})); err != nil {
		return err
	}
	if err := ch.Connect(tcpAddr.IP, tcpAddr.Port, nil); err != nil {
		return err
	}

	select {
	case <-connected:
		fmt.Printf("已连接 %s\n", *addr)
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	for i := 0; i < *count; i++ {
		text := fmt.Sprintf("%s #%d", *msg, i+1)
		if err := ch.Send(packet.New(echoPacketID, wrapperspb.String(text))); err != nil {
			return err
		}
		select {
		case got := <-echoed:
			fmt.Printf("← %s\n", got)
		case err := <-failed:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ============================================================================
//                              download / fetch
// ============================================================================

// runDownload 下载文件，已有的 .download 临时文件会被续传
func runDownload(ctx context.Context, g *globalFlags, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	uri := fs.String("url", "", "下载地址")
	out := fs.String("out", "", "保存路径")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uri == "" || *out == "" {
		return errors.New("download 需要 -url 与 -out")
	}

	kit, err := startKit(ctx, g)
	if err != nil {
		return err
	}
	defer func() { _ = kit.Close() }()

	dm := kit.Download()
	done := make(chan error, 1)
	dm.OnUpdate(func(e pkgif.DownloadUpdateEvent) {
		fmt.Printf("\r已下载 %d 字节（%.1f KiB/s）", e.CurrentLength, dm.CurrentSpeed()/1024)
	})
	dm.OnSuccess(func(e pkgif.DownloadSuccessEvent) {
		fmt.Printf("\n下载完成: %s（%d 字节）\n", e.DownloadPath, e.CurrentLength)
		done <- nil
	})
	dm.OnFailure(func(e pkgif.DownloadFailureEvent) { done <- e.Err })

	if _, err := dm.AddDownload(*out, *uri, "cli", 0, nil); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Println("\n已中断，临时文件保留以便续传")
		return nil
	}
}

// runFetch 发起 Web 请求并把响应写到标准输出
func runFetch(ctx context.Context, g *globalFlags, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	uri := fs.String("url", "", "请求地址")
	data := fs.String("data", "", "POST 数据，为空时发送 GET")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uri == "" {
		return errors.New("fetch 需要 -url")
	}

	kit, err := startKit(ctx, g)
	if err != nil {
		return err
	}
	defer func() { _ = kit.Close() }()

	var postData []byte
	if *data != "" {
		postData = []byte(*data)
	}

	wm := kit.WebRequest()
	result := make(chan []byte, 1)
	failed := make(chan error, 1)
	wm.OnSuccess(func(e pkgif.WebRequestSuccessEvent) { result <- e.Data })
	wm.OnFailure(func(e pkgif.WebRequestFailureEvent) { failed <- e.Err })

	if _, err := wm.AddWebRequest(*uri, postData, "cli", 0, nil); err != nil {
		return err
	}

	select {
	case body := <-result:
		_, err := os.Stdout.Write(body)
		return err
	case err := <-failed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
