package htnopts

import "testing"

func TestEffectiveMaxDepthDefaultsWhenUnset(t *testing.T) {
	var o Options
	if got := o.EffectiveMaxDepth(); got != DefaultMaxDepth {
		t.Fatalf("EffectiveMaxDepth() = %d, want %d", got, DefaultMaxDepth)
	}
	o.MaxDepth = 7
	if got := o.EffectiveMaxDepth(); got != 7 {
		t.Fatalf("EffectiveMaxDepth() = %d, want 7", got)
	}
}

func TestEffectiveLoggerDefaultsToStandardLogger(t *testing.T) {
	var o Options
	if o.EffectiveLogger() == nil {
		t.Fatal("EffectiveLogger() returned nil")
	}
}
