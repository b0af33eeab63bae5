// Package logger 构造 zerolog 日志器。
package logger

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New 按级别与格式创建日志器；format 为 "json" 时输出 JSON，否则输出控制台格式。
// 未知级别按 info 处理。
func New(level, format string, w io.Writer) zerolog.Logger {
	var out io.Writer = w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel 解析日志级别，大小写不敏感。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
