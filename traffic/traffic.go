// Package traffic keeps recent throughput samples for the footer graph.
package traffic

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/spy-duck/duck-tui/client"
)

var units = []string{"b", "Kb", "Mb", "Gb", "Tb", "Pb"}

// Split formats bytes as a number and unit, e.g. 1536 -> ("1.5", "Kb").
// Zero is ("0", "").
func Split(bytes int64, precision int) (string, string) {
	if bytes <= 0 {
		return "0", ""
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	p := math.Pow(10, float64(precision))
	v = math.Round(v*p) / p
	return strconv.FormatFloat(v, 'f', -1, 64), units[i]
}

// Format is Split joined, e.g. "1.5Kb".
func Format(bytes int64, precision int) string {
	n, u := Split(bytes, precision)
	return n + u
}

// Ring holds the last N samples. It is safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []client.TrafficSample
	start int
	n     int
}

// NewRing returns a ring with room for size samples.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{buf: make([]client.TrafficSample, size)}
}

// Push appends s, dropping the oldest sample when full.
func (r *Ring) Push(s client.TrafficSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// Samples returns the samples oldest first.
func (r *Ring) Samples() []client.TrafficSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]client.TrafficSample, r.n)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns the newest sample.
func (r *Ring) Last() (client.TrafficSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n == 0 {
		return client.TrafficSample{}, false
	}
	return r.buf[(r.start+r.n-1)%len(r.buf)], true
}

// Max is the largest up or down value held.
func (r *Ring) Max() int64 {
	var m int64
	for _, s := range r.Samples() {
		m = max(m, s.Up, s.Down)
	}
	return m
}

// Reset drops every sample.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.start, r.n = 0, 0
	r.mu.Unlock()
}

var bars = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values scaled to peak, one rune each. Values at or
// below zero use the lowest bar.
func Sparkline(values []int64, peak int64) string {
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(float64(v) / float64(peak) * float64(len(bars)-1))
			if idx >= len(bars) {
				idx = len(bars) - 1
			}
		}
		b.WriteRune(bars[idx])
	}
	return b.String()
}

// Series extracts one direction from samples, padded on the left with zeros
// to width.
func Series(samples []client.TrafficSample, width int, down bool) []int64 {
	out := make([]int64, width)
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	off := width - len(samples)
	for i, s := range samples {
		if down {
			out[off+i] = s.Down
		} else {
			out[off+i] = s.Up
		}
	}
	return out
}
