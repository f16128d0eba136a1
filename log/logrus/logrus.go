// Package logrus adapts logrus to entcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/entcache"
)

var _ entcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a component=entcache field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "entcache")}
}

// NewJSON builds a standalone JSON logger at the given level.
func NewJSON(level string) (Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return New(l), nil
}

func (l Logger) Debug(msg string, f entcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f entcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f entcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f entcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f entcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
