package verification

import "github.com/JaimeStill/terra/internal/vision"

const (
	// EffectivenessThreshold is the minimum reduction percentage for approval.
	EffectivenessThreshold = 70.0

	// ConfidenceFloor must be exceeded by the mean detection confidence.
	ConfidenceFloor = 0.5
)

// Effectiveness is the before/after reduction judgment.
type Effectiveness struct {
	ReductionPercentage float64 `json:"reductionPercentage"`
	OverallConfidence   float64 `json:"overallConfidence"`
	IsEffective         bool    `json:"isEffective"`
	BeforeCount         int     `json:"beforeCount"`
	AfterCount          int     `json:"afterCount"`
	TrashRemoved        int     `json:"trashRemoved"`
}

// Score compares the trash counts of a before and an after photo.
func Score(before, after vision.Report) Effectiveness {
	reduction := 0.0
	if before.TrashCount > 0 {
		reduction = float64(before.TrashCount-after.TrashCount) / float64(before.TrashCount) * 100
	}
	reduction = max(0, min(100, reduction))

	confidence := (before.Confidence + after.Confidence) / 2

	return Effectiveness{
		ReductionPercentage: reduction,
		OverallConfidence:   confidence,
		IsEffective:         reduction >= EffectivenessThreshold && confidence > ConfidenceFloor,
		BeforeCount:         before.TrashCount,
		AfterCount:          after.TrashCount,
		TrashRemoved:        max(0, before.TrashCount-after.TrashCount),
	}
}

// Approved reports whether the judgment passes the approval decision.
func (e Effectiveness) Approved() bool {
	return e.IsEffective && e.ReductionPercentage >= EffectivenessThreshold
}
