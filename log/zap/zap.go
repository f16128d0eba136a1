// Package zap adapts a *zap.Logger to entcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/entcache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ entcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New wraps l, naming it "entcache" so cache housekeeping is easy to filter.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("entcache")} }

// NewProduction builds a JSON logger at the given level ("debug", "info", ...).
func NewProduction(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return New(l), nil
}

func (z Logger) Debug(msg string, f entcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f entcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f entcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f entcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f entcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case nil:
			// a nil error (e.g. delErr on a clean remove) is noise
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
