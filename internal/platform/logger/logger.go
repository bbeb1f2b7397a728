package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production", "release":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop 返回一个丢弃所有输出的日志器
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}

var (
	mu      sync.RWMutex
	current = Nop()
)

// Init 按运行模式创建全局日志器。在调用之前，L() 返回的是静默日志器。
func Init(mode string) (*Logger, error) {
	l, err := New(mode)
	if err != nil {
		return nil, err
	}
	Set(l)
	return l, nil
}

// Set 替换全局日志器
func Set(l *Logger) {
	if l == nil {
		l = Nop()
	}
	mu.Lock()
	current = l
	mu.Unlock()
}

// L 返回全局日志器
func L() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Named 返回附带 module 字段的全局日志器
func Named(module string) *Logger {
	return L().With("module", module)
}
