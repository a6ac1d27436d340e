package models

import "time"

// MaturityStatus tracks how proven a strategy is.
type MaturityStatus string

const (
	MaturityTesting    MaturityStatus = "testing"
	MaturityDeveloping MaturityStatus = "developing"
	MaturityMature     MaturityStatus = "mature"
)

// Strategy is a user-defined trading strategy. Maturity advances as the
// sample of trades using it grows toward SampleSizeThreshold.
type Strategy struct {
	ID                  string
	UserID              string
	Name                string
	Description         string
	MaturityStatus      MaturityStatus
	SampleSizeThreshold int
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UpdateMaturity recalculates maturity from sample progress: under 50% of
// the threshold is testing, under 90% developing, beyond that mature.
func (s *Strategy) UpdateMaturity(totalTrades int) {
	threshold := s.SampleSizeThreshold
	if threshold <= 0 {
		threshold = 30
	}
	progress := float64(totalTrades) / float64(threshold) * 100
	switch {
	case progress < 50:
		s.MaturityStatus = MaturityTesting
	case progress < 90:
		s.MaturityStatus = MaturityDeveloping
	default:
		s.MaturityStatus = MaturityMature
	}
}
