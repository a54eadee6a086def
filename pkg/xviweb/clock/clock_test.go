package clock

import "testing"

func TestSystemMonotonic(t *testing.T) {
	c := New()
	a := c.NowMillis()
	b := c.NowMillis()
	if b < a {
		t.Errorf("NowMillis() went backwards: %d then %d", a, b)
	}
}

func TestManualAdvance(t *testing.T) {
	m := NewManual(1000)
	if m.NowMillis() != 1000 {
		t.Fatalf("NowMillis() = %d, want 1000", m.NowMillis())
	}
	m.Advance(250)
	if m.NowMillis() != 1250 {
		t.Fatalf("NowMillis() = %d, want 1250", m.NowMillis())
	}
}
