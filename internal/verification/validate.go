package verification

import (
	"math"
	"net/url"
	"strings"

	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/pkg/storage"
)

// MaxReportedPounds is the largest plausible single cleanup.
const MaxReportedPounds = 1000

// Validation violation messages, reported in this order.
const (
	ViolationUserID         = "Missing userId"
	ViolationBeforePhoto    = "Invalid before photo URL"
	ViolationAfterPhoto     = "Invalid after photo URL"
	ViolationLocation       = "Invalid user location coordinates"
	ViolationPounds         = "Invalid reported pounds amount"
	ViolationPoundsTooLarge = "Reported pounds amount seems unrealistic (>1000 lbs)"
	ViolationSamePhotos     = "Before and after photos cannot be the same"
)

var photoSchemes = map[string]bool{
	"http":         true,
	"https":        true,
	"gs":           true,
	storage.Scheme: true,
}

// Validation is the verdict of Validate.
type Validation struct {
	Valid      bool
	Violations []string
}

// Message joins the violations, or reports success when there are none.
func (v Validation) Message() string {
	if len(v.Violations) == 0 {
		return "Validation successful"
	}
	return strings.Join(v.Violations, "; ")
}

// Validate checks a submission's structure and business rules. Every check
// runs, so the result lists all violations rather than the first.
func Validate(s submissions.Submission) Validation {
	var violations []string

	if strings.TrimSpace(s.UserID) == "" {
		violations = append(violations, ViolationUserID)
	}
	if !validPhotoLocator(s.BeforePhotoURL) {
		violations = append(violations, ViolationBeforePhoto)
	}
	if !validPhotoLocator(s.AfterPhotoURL) {
		violations = append(violations, ViolationAfterPhoto)
	}
	if s.UserLocation == nil || !s.UserLocation.Valid() {
		violations = append(violations, ViolationLocation)
	}

	p := s.ReportedPounds
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		violations = append(violations, ViolationPounds)
	}
	if p > MaxReportedPounds {
		violations = append(violations, ViolationPoundsTooLarge)
	}

	if s.BeforePhotoURL == s.AfterPhotoURL {
		violations = append(violations, ViolationSamePhotos)
	}

	return Validation{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

func validPhotoLocator(locator string) bool {
	if locator == "" {
		return false
	}
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	if !photoSchemes[u.Scheme] {
		return false
	}
	// az:///key addresses the default container
	if u.Scheme == storage.Scheme {
		return u.Host != "" || len(u.Path) > 1
	}
	return u.Host != ""
}
