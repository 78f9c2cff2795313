package catalog

import "testing"

func TestSkillIDRoundTrip(t *testing.T) {
	cases := []struct{ base, level, sub int32 }{
		{0, 0, 0},
		{170100, 1, 0},
		{90100, 43, 30},
		{1<<24 - 1, 99, 99},
	}
	for _, c := range cases {
		id := NewSkillID(c.base, c.level, c.sub)
		if got := id.Base(); got != c.base {
			t.Errorf("Base() = %d, want %d (id=%d)", got, c.base, id)
		}
		if got := id.Level(); got != c.level {
			t.Errorf("Level() = %d, want %d (id=%d)", got, c.level, id)
		}
		if got := id.Sub(); got != c.sub {
			t.Errorf("Sub() = %d, want %d (id=%d)", got, c.sub, id)
		}
	}
}
