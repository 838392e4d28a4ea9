// Package logger 日志模块
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

// DefaultFile 默认日志文件路径
const DefaultFile = "log/subscription_bot.log"

// Options 日志选项
type Options struct {
	Debug    bool
	Timezone string    // 为空或非法时使用 UTC
	File     string    // 为空时只输出到控制台
	Out      io.Writer // 控制台输出，默认 os.Stdout
}

var (
	mu      sync.Mutex
	logFile *os.File
)

// Init 初始化日志，可重复调用，会关闭上一次打开的日志文件
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil || opts.Timezone == "" {
		loc = time.UTC
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(loc)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    out != os.Stdout,
	}}

	closeFile()
	if opts.File != "" {
		if f, err := openFile(opts.File); err == nil {
			logFile = f
			writers = append(writers, f)
		}
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if opts.Debug {
		ctx = ctx.Caller()
	}
	Logger = ctx.Logger()
	log.Logger = Logger
}

func openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func closeFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Close 关闭日志文件
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
}

// With 派生带组件字段的子日志
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// Debug 调试日志
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 信息日志
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 警告日志
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 错误日志
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal 致命错误日志
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}
