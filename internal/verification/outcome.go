package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/internal/audit"
	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/internal/vision"
)

// Stage is a step of the verification state machine.
type Stage string

const (
	StageValidating    Stage = "validating"
	StageLocationCheck Stage = "location_check"
	StageImageAnalysis Stage = "image_analysis"
	StageScoring       Stage = "scoring"
	StageLedger        Stage = "ledger"
)

// Outcome messages.
const (
	msgLocationFailed = "Location verification failed - cleanup not within hotspot radius"
	msgApproved       = "Cleanup verified successfully! %.1f%% trash reduction detected."
	msgInsufficient   = "Insufficient cleanup detected. %.1f%% reduction (minimum %.0f%% required)."
	msgError          = "Verification error: %s"
)

// ImageAnalysis carries both photo reports and their comparison. Fields
// stay nil for runs that ended before the stage producing them.
type ImageAnalysis struct {
	Before        *vision.Report `json:"beforeAnalysis"`
	After         *vision.Report `json:"afterAnalysis"`
	Effectiveness *Effectiveness `json:"effectiveness"`
}

// Details is persisted as the submission's verification details.
type Details struct {
	LocationVerified bool          `json:"locationVerified"`
	ImageAnalysis    ImageAnalysis `json:"imageAnalysis"`
	ValidationErrors []string      `json:"validationErrors,omitempty"`
	PointsAwarded    *int64        `json:"pointsAwarded,omitempty"`
	BadgesEarned     []string      `json:"badgesEarned,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// Outcome accumulates the result of a verification run stage by stage.
type Outcome struct {
	SubmissionID uuid.UUID          `json:"submissionId"`
	Status       submissions.Status `json:"status"`
	Message      string             `json:"message"`
	Stage        Stage              `json:"stage"`
	Details      Details            `json:"details"`
	VerifiedAt   time.Time          `json:"verifiedAt"`
	ProcessingMs int64              `json:"processingTimeMs"`
}

func newOutcome(id uuid.UUID) *Outcome {
	return &Outcome{
		SubmissionID: id,
		Status:       submissions.StatusPending,
		Stage:        StageValidating,
	}
}

func (o *Outcome) reject(message string) {
	o.Status = submissions.StatusRejected
	o.Message = message
}

func (o *Outcome) fail(message string) {
	o.Status = submissions.StatusError
	o.Message = fmt.Sprintf(msgError, message)
	o.Details.Error = message
}

func (o *Outcome) approve(eff Effectiveness, points int64, badges []string) {
	o.Status = submissions.StatusApproved
	o.Message = fmt.Sprintf(msgApproved, eff.ReductionPercentage)
	o.Details.PointsAwarded = &points
	o.Details.BadgesEarned = badges
}

// Result converts the outcome into the terminal submission write.
func (o *Outcome) Result() submissions.Result {
	return submissions.Result{
		Status:       o.Status,
		Message:      o.Message,
		Details:      o.Details,
		VerifiedAt:   o.VerifiedAt,
		ProcessingMs: o.ProcessingMs,
	}
}

// Entry converts the outcome into an audit record for s.
func (o *Outcome) Entry(s *submissions.Submission) audit.Entry {
	e := audit.Entry{
		SubmissionID:     s.ID,
		UserID:           s.UserID,
		HotspotID:        s.HotspotID,
		Status:           string(o.Status),
		LocationVerified: o.Details.LocationVerified,
		ReportedPounds:   s.ReportedPounds,
		ProcessingMs:     o.ProcessingMs,
		CreatedAt:        o.VerifiedAt,
	}
	if s.CleanupType != nil {
		e.CleanupType = *s.CleanupType
	}
	if eff := o.Details.ImageAnalysis.Effectiveness; eff != nil {
		e.Effectiveness = &audit.Summary{
			ReductionPercentage: eff.ReductionPercentage,
			OverallConfidence:   eff.OverallConfidence,
			IsEffective:         eff.IsEffective,
			BeforeCount:         eff.BeforeCount,
			AfterCount:          eff.AfterCount,
		}
	}
	return e
}
