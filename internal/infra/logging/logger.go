package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

// echoと同じgommonのロガー。1行1JSONで出す
const header = `{"time":"${time_rfc3339_nano}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

func New(prefix string, level string) *log.Logger {
	return NewWithOutput(prefix, level, os.Stdout)
}

func NewWithOutput(prefix string, level string, w io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	return l
}

// 不明な値はINFO
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
