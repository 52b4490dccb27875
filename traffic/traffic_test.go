package traffic

import (
	"testing"
	"unicode/utf8"

	"github.com/spy-duck/duck-tui/client"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		bytes     int64
		precision int
		want      string
	}{
		{0, 1, "0"},
		{1, 1, "1b"},
		{1023, 1, "1023b"},
		{1024, 1, "1Kb"},
		{1536, 1, "1.5Kb"},
		{1600, 2, "1.56Kb"},
		{5 * 1024 * 1024, 1, "5Mb"},
		{3 << 40, 1, "3Tb"},
	}
	for _, c := range cases {
		if got := Format(c.bytes, c.precision); got != c.want {
			t.Errorf("Format(%d, %d): want %q, got %q", c.bytes, c.precision, c.want, got)
		}
	}
}

func TestSplit(t *testing.T) {
	n, u := Split(2048, 1)
	if n != "2" || u != "Kb" {
		t.Errorf("want 2 Kb, got %s %s", n, u)
	}
}

func TestRing(t *testing.T) {
	r := NewRing(3)
	if _, ok := r.Last(); ok {
		t.Fatal("empty ring has no last sample")
	}
	for i := int64(1); i <= 5; i++ {
		r.Push(client.TrafficSample{Up: i, Down: i * 10})
	}
	got := r.Samples()
	if len(got) != 3 || got[0].Up != 3 || got[2].Up != 5 {
		t.Errorf("want samples 3..5, got %+v", got)
	}
	if last, _ := r.Last(); last.Up != 5 {
		t.Errorf("want last 5, got %d", last.Up)
	}
	if r.Max() != 50 {
		t.Errorf("want max 50, got %d", r.Max())
	}
	r.Reset()
	if len(r.Samples()) != 0 {
		t.Error("want empty after reset")
	}
}

func TestSparkline(t *testing.T) {
	s := Sparkline([]int64{0, 50, 100}, 100)
	if utf8.RuneCountInString(s) != 3 {
		t.Fatalf("want 3 runes, got %q", s)
	}
	if s != "▁▄█" {
		t.Errorf("want ▁▄█, got %q", s)
	}
	if Sparkline([]int64{5}, 0) != "▁" {
		t.Error("zero peak renders lowest bar")
	}
}

func TestSeries(t *testing.T) {
	samples := []client.TrafficSample{{Up: 1, Down: 2}, {Up: 3, Down: 4}}
	up := Series(samples, 4, false)
	if up[0] != 0 || up[1] != 0 || up[2] != 1 || up[3] != 3 {
		t.Errorf("unexpected up series %v", up)
	}
	down := Series(samples, 1, true)
	if len(down) != 1 || down[0] != 4 {
		t.Errorf("unexpected down series %v", down)
	}
}
