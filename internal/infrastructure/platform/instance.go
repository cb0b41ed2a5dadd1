package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nacker/vue3-desktop-shell/pkg/logger"
	"go.uber.org/zap"
)

// ErrLockHeld 锁文件已被其他进程持有
var ErrLockHeld = errors.New("instance lock is held by another process")

const (
	lockFileName   = "instance.lock"
	socketFileName = "instance.sock"

	// notifyTimeout 通知已有实例的超时时间
	notifyTimeout = 2 * time.Second
)

// SecondInstanceData 第二个实例发给已有实例的启动信息
type SecondInstanceData struct {
	// Args 第二个实例的命令行参数
	Args []string `json:"args"`
	// Cwd 第二个实例的工作目录
	Cwd string `json:"cwd"`
}

// InstanceLock 基于文件锁的单实例锁
//
// 持有锁的进程在同目录下监听 unix domain socket；
// 获取失败的进程把自己的启动参数写入 socket 后退出。
type InstanceLock struct {
	dir      string
	args     []string
	lockPath string
	sockPath string

	mu       sync.Mutex
	file     *os.File
	listener net.Listener
	handler  func(args []string)
}

// DefaultLockDir 返回默认的锁目录：用户缓存目录下的应用目录
//
// Parameters: appID - 应用标识
// Returns: 锁目录路径，以及获取缓存目录失败时的错误
func DefaultLockDir(appID string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(cacheDir, appID), nil
}

// NewInstanceLock 创建单实例锁
//
// Parameters:
//   - dir: 锁文件和 socket 所在目录
//   - args: 获取失败时发送给已有实例的命令行参数
func NewInstanceLock(dir string, args []string) *InstanceLock {
	return &InstanceLock{
		dir:      dir,
		args:     args,
		lockPath: filepath.Join(dir, lockFileName),
		sockPath: filepath.Join(dir, socketFileName),
	}
}

// Acquire 尝试获取锁
//
// 其他进程持有锁时，把启动信息通知给它并返回 false。
// 通知失败只记录日志，不影响返回值。
func (l *InstanceLock) Acquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return true, nil
	}

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockHeld) {
			if notifyErr := l.notifyOwner(); notifyErr != nil {
				logger.Warn("通知已有实例失败", zap.String("socket", l.sockPath), zap.Error(notifyErr))
			}
			return false, nil
		}
		return false, fmt.Errorf("lock %s: %w", l.lockPath, err)
	}

	l.file = f
	if err := f.Truncate(0); err == nil {
		_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	if err := l.listen(); err != nil {
		logger.Warn("无法监听第二实例通知", zap.String("socket", l.sockPath), zap.Error(err))
	}

	logger.Debug("已获取单实例锁", zap.String("path", l.lockPath))
	return true, nil
}

// OnSecondInstance 注册第二个实例启动时的回调
//
// 回调在 socket 处理 goroutine 中调用。
func (l *InstanceLock) OnSecondInstance(fn func(args []string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = fn
}

// Release 释放锁并关闭 socket
func (l *InstanceLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		_ = l.listener.Close()
		_ = os.Remove(l.sockPath)
		l.listener = nil
	}

	if l.file == nil {
		return nil
	}

	err := unlockFile(l.file)
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	l.file = nil
	if err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return nil
}

// listen 监听第二实例通知（调用方持有 mu）
func (l *InstanceLock) listen() error {
	// 持有锁说明旧 socket 已无人监听
	_ = os.Remove(l.sockPath)

	ln, err := net.Listen("unix", l.sockPath)
	if err != nil {
		return err
	}
	l.listener = ln

	go l.serve(ln)
	return nil
}

func (l *InstanceLock) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Warn("第二实例 socket 异常退出", zap.Error(err))
			}
			return
		}
		go l.handleConn(conn)
	}
}

func (l *InstanceLock) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(notifyTimeout))

	var data SecondInstanceData
	if err := json.NewDecoder(conn).Decode(&data); err != nil {
		logger.Warn("解析第二实例通知失败", zap.Error(err))
		return
	}

	logger.Info("收到第二实例启动通知",
		zap.Strings("args", data.Args),
		zap.String("cwd", data.Cwd),
	)

	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()

	if handler != nil {
		handler(data.Args)
	}
}

// notifyOwner 把当前进程的启动信息发送给持有锁的实例
func (l *InstanceLock) notifyOwner() error {
	conn, err := net.DialTimeout("unix", l.sockPath, notifyTimeout)
	if err != nil {
		return fmt.Errorf("dial instance socket: %w", err)
	}
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(notifyTimeout))

	cwd, _ := os.Getwd()
	if err := json.NewEncoder(conn).Encode(SecondInstanceData{Args: l.args, Cwd: cwd}); err != nil {
		return fmt.Errorf("send second instance data: %w", err)
	}
	return nil
}
