package entcache

import "testing"

func TestMultiHooks(t *testing.T) {
	if _, ok := MultiHooks().(NopHooks); !ok {
		t.Fatalf("no hooks should collapse to NopHooks")
	}
	a, b := &recordingHooks{}, &recordingHooks{}
	if MultiHooks(a) != Hooks(a) {
		t.Fatalf("a single hook should be returned as is")
	}

	h := MultiHooks(a, b)
	h.Hit("k")
	h.SelfHeal("k", "corrupt")
	h.InvalidateOutage("k", nil, nil)
	for i, r := range []*recordingHooks{a, b} {
		if r.count("hit") != 1 || r.count("selfheal:corrupt") != 1 || r.count("outage") != 1 {
			t.Fatalf("hook %d missed events: %v", i, r.events)
		}
	}
}
