package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateMaturity(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		trades    int
		want      MaturityStatus
	}{
		{"no trades", 30, 0, MaturityTesting},
		{"under half the sample", 30, 14, MaturityTesting},
		{"half the sample", 30, 15, MaturityDeveloping},
		{"just under ninety percent", 30, 26, MaturityDeveloping},
		{"ninety percent", 30, 27, MaturityMature},
		{"beyond the sample", 30, 100, MaturityMature},
		{"zero threshold falls back to 30", 0, 27, MaturityMature},
		{"custom threshold", 100, 49, MaturityTesting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Strategy{SampleSizeThreshold: tt.threshold}
			s.UpdateMaturity(tt.trades)
			assert.Equal(t, tt.want, s.MaturityStatus)
		})
	}
}

func TestUpdateMaturity_NeverRegressesInPractice(t *testing.T) {
	// Trade counts only grow, so walking the count upward must walk
	// maturity monotonically through testing, developing, mature.
	s := &Strategy{SampleSizeThreshold: 30}
	last := MaturityTesting
	rank := map[MaturityStatus]int{MaturityTesting: 0, MaturityDeveloping: 1, MaturityMature: 2}
	for count := 0; count <= 60; count++ {
		s.UpdateMaturity(count)
		assert.GreaterOrEqual(t, rank[s.MaturityStatus], rank[last], "count=%d", count)
		last = s.MaturityStatus
	}
}
