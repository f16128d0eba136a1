package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/entcache"
)

func TestLoggerWritesFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("self-healed entry", entcache.Fields{"key": "venuetype:id:1", "reason": "corrupt", "gen": nil})

	e := hook.LastEntry()
	if e == nil {
		t.Fatalf("expected an entry")
	}
	if e.Level != logrus.DebugLevel || e.Message != "self-healed entry" {
		t.Fatalf("unexpected entry %v %q", e.Level, e.Message)
	}
	if e.Data["component"] != "entcache" || e.Data["reason"] != "corrupt" {
		t.Fatalf("unexpected data %v", e.Data)
	}
	if _, ok := e.Data["gen"]; ok {
		t.Fatalf("nil values should be dropped")
	}
}

func TestNewJSONLevel(t *testing.T) {
	l, err := NewJSON("warn")
	if err != nil {
		t.Fatalf("NewJSON: %v", err)
	}
	if l.E.Logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", l.E.Logger.GetLevel())
	}
	if _, err := NewJSON("loud"); err == nil {
		t.Fatalf("expected level parse error")
	}
}
