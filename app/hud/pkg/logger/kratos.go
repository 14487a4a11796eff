package logger

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
)

// kratosLogger 将 kratos 的 log.Logger 接口桥接到 logrus，服务端与流水线共用一个输出
type kratosLogger struct {
	l *logrus.Logger
}

// NewKratosLogger 基于 logrus 实例创建 kratos 日志记录器，l 为空时使用全局 Log
func NewKratosLogger(l *logrus.Logger) log.Logger {
	if l == nil {
		l = Log
	}
	return &kratosLogger{l: l}
}

// Log 实现 log.Logger 接口
func (k *kratosLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}

	entry := k.l.WithFields(fields)
	switch level {
	case log.LevelDebug:
		entry.Debug(msg)
	case log.LevelWarn:
		entry.Warn(msg)
	case log.LevelError:
		entry.Error(msg)
	case log.LevelFatal:
		entry.Fatal(msg)
	default:
		entry.Info(msg)
	}
	return nil
}
