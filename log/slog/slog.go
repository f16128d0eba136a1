// Package slog adapts a log/slog Logger to entcache.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"os"
	"strings"

	"github.com/unkn0wn-root/entcache"
)

var _ entcache.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New wraps l in a "entcache" group.
func New(l *stdslog.Logger) Logger { return Logger{L: l.WithGroup("entcache")} }

// NewJSON logs JSON to stderr at the given level.
func NewJSON(level string) (Logger, error) {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return Logger{}, err
	}
	h := stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl})
	return New(stdslog.New(h)), nil
}

func (s Logger) Debug(msg string, f entcache.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f entcache.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f entcache.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f entcache.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f entcache.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

func attrs(f entcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		if v == nil {
			continue
		}
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
