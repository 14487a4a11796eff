package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log 全局日志实例，InitLogger 之前使用默认配置
var Log = logrus.New()

const (
	timeLayout     = "2006-01-02 15:04:05"
	servicePrefix  = "service."
	serviceNameKey = "service.name"
	serviceVerKey  = "service.version"
	callerKey      = "caller"
)

// CustomFormatter 输出 [TIME] [LEVEL] [SERVICE] [FILE:LINE] MSG k=v
//
// kratos 注入的 service.* 字段合并为 SERVICE 段，不再重复出现在字段列表里；
// 没有服务名时省略该段。caller 字段优先于 logrus 自身的调用位置。
type CustomFormatter struct{}

// Format 实现 logrus.Formatter 接口
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] ", entry.Time.Format(timeLayout), levelTag(entry.Level))
	if svc := serviceTag(entry.Data); svc != "" {
		fmt.Fprintf(&sb, "[%s] ", svc)
	}
	fmt.Fprintf(&sb, "[%s] %s", callerTag(entry), entry.Message)

	for _, k := range fieldKeys(entry.Data) {
		fmt.Fprintf(&sb, " %s=%s", k, fieldValue(entry.Data[k]))
	}
	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// levelTag 截成四个字符：INFO, WARN, ERRO
func levelTag(l logrus.Level) string {
	level := strings.ToUpper(l.String())
	if len(level) > 4 {
		level = level[:4]
	}
	return level
}

func serviceTag(data logrus.Fields) string {
	name, _ := data[serviceNameKey].(string)
	if name == "" {
		return ""
	}
	if v, _ := data[serviceVerKey].(string); v != "" {
		return name + "@" + v
	}
	return name
}

func callerTag(entry *logrus.Entry) string {
	if c, ok := entry.Data[callerKey]; ok {
		return fmt.Sprint(c)
	}
	if entry.HasCaller() {
		return fmt.Sprintf("%s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	return ""
}

// fieldKeys 排序后的普通字段，跳过已并入前缀的 service.* 与 caller
func fieldKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == callerKey || strings.HasPrefix(k, servicePrefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fieldValue(v interface{}) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// InitLogger 初始化日志：同时输出到控制台和文件
func InitLogger(levelStr string, filePath string) error {
	out, err := openOutput(filePath)
	if err != nil {
		return err
	}

	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(&CustomFormatter{})
	l.SetOutput(out)
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	Log = l
	return nil
}

// openOutput 标准输出，配置了文件时追加写入同一份日志
func openOutput(filePath string) (io.Writer, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, err
	}
	return io.MultiWriter(os.Stdout, file), nil
}
