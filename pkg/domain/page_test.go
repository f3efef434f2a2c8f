package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name           string
		offset, limit  int
		maxLimit       int
		wantOff, wantL int
	}{
		{"defaults applied", 0, 0, 50, 0, DefaultPageLimit},
		{"negative offset clamped", -5, 10, 50, 0, 10},
		{"negative limit becomes default", 0, -1, 50, 0, DefaultPageLimit},
		{"limit above cap is clamped", 0, 500, 50, 0, 50},
		{"limit at cap passes", 10, 50, 50, 10, 50},
		{"no cap configured", 0, 500, 0, 0, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NormalizePage(tt.offset, tt.limit, tt.maxLimit)
			assert.Equal(t, tt.wantOff, p.Offset)
			assert.Equal(t, tt.wantL, p.Limit)
		})
	}
}
