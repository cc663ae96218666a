// internal/logger/forward.go
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// LogSink принимает готовые строки логов (например, дашборд)
type LogSink interface {
	SendLog(line string)
}

// Forwarder дублирует записи логгера в LogSink.
// Приемник подключается позже создания логгера; до этого записи отбрасываются.
type Forwarder struct {
	mu   sync.RWMutex
	sink LogSink
}

func NewForwarder() *Forwarder {
	return &Forwarder{}
}

// Attach подключает приемник (nil отключает)
func (f *Forwarder) Attach(sink LogSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

// Write реализует io.Writer для zapcore
func (f *Forwarder) Write(p []byte) (int, error) {
	f.mu.RLock()
	sink := f.sink
	f.mu.RUnlock()

	if sink != nil {
		sink.SendLog(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (f *Forwarder) core(encoderConfig zapcore.EncoderConfig) zapcore.Core {
	encoderConfig.CallerKey = zapcore.OmitKey
	encoderConfig.StacktraceKey = zapcore.OmitKey
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(f), zapcore.InfoLevel)
}
