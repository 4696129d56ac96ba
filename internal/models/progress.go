package models

import "math"

// Progress is the derived solved/total statistic of a ladder for one user.
// It is computed on demand and never persisted.
type Progress struct {
	SolvedCount int     `json:"solved_count"`
	TotalCount  int     `json:"total_count"`
	Percentage  float64 `json:"percentage"`
}

// NewProgress builds a snapshot from counts; percentage is 0 when total is 0
func NewProgress(solved, total int) Progress {
	p := Progress{SolvedCount: solved, TotalCount: total}
	if total > 0 {
		p.Percentage = 100 * float64(solved) / float64(total)
	}
	return p
}

// ProgressOf counts the questions solved by username
func ProgressOf(questions []Question, username string) Progress {
	solved := 0
	for i := range questions {
		if questions[i].IsSolvedBy(username) {
			solved++
		}
	}
	return NewProgress(solved, len(questions))
}

// Rounded returns the percentage rounded to the nearest integer, for display only
func (p Progress) Rounded() int {
	return int(math.Round(p.Percentage))
}

// Complete reports whether every counted question is solved
func (p Progress) Complete() bool {
	return p.TotalCount > 0 && p.SolvedCount == p.TotalCount
}
