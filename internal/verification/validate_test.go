package verification_test

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/internal/verification"
	"github.com/JaimeStill/terra/pkg/geo"
)

func validSubmission() submissions.Submission {
	hotspot := "central-park"
	kind := "beach"
	return submissions.Submission{
		ID:             uuid.MustParse("5d7f5c2e-3b7a-4a55-9a53-2f4a3e6f9b10"),
		UserID:         "user-1",
		HotspotID:      &hotspot,
		UserLocation:   &geo.Point{Latitude: 40.7130, Longitude: -74.0062},
		BeforePhotoURL: "https://photos.example.com/before.jpg",
		AfterPhotoURL:  "https://photos.example.com/after.jpg",
		ReportedPounds: 5.5,
		CleanupType:    &kind,
		Status:         submissions.StatusPending,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *submissions.Submission)
		want   []string
	}{
		{"valid", func(s *submissions.Submission) {}, nil},
		{"missing user", func(s *submissions.Submission) { s.UserID = " " }, []string{verification.ViolationUserID}},
		{"missing before photo", func(s *submissions.Submission) { s.BeforePhotoURL = "" }, []string{verification.ViolationBeforePhoto}},
		{"ftp after photo", func(s *submissions.Submission) { s.AfterPhotoURL = "ftp://host/a.jpg" }, []string{verification.ViolationAfterPhoto}},
		{"malformed after photo", func(s *submissions.Submission) { s.AfterPhotoURL = "not a url" }, []string{verification.ViolationAfterPhoto}},
		{"gs photos", func(s *submissions.Submission) {
			s.BeforePhotoURL = "gs://bucket/before.jpg"
			s.AfterPhotoURL = "gs://bucket/after.jpg"
		}, nil},
		{"az photos", func(s *submissions.Submission) {
			s.BeforePhotoURL = "az://photos/before.jpg"
			s.AfterPhotoURL = "az:///after.jpg"
		}, nil},
		{"missing location", func(s *submissions.Submission) { s.UserLocation = nil }, []string{verification.ViolationLocation}},
		{"latitude out of range", func(s *submissions.Submission) { s.UserLocation = &geo.Point{Latitude: 91, Longitude: 0} }, []string{verification.ViolationLocation}},
		{"longitude out of range", func(s *submissions.Submission) { s.UserLocation = &geo.Point{Latitude: 0, Longitude: -180.5} }, []string{verification.ViolationLocation}},
		{"NaN latitude", func(s *submissions.Submission) { s.UserLocation = &geo.Point{Latitude: math.NaN()} }, []string{verification.ViolationLocation}},
		{"zero pounds", func(s *submissions.Submission) { s.ReportedPounds = 0 }, []string{verification.ViolationPounds}},
		{"negative pounds", func(s *submissions.Submission) { s.ReportedPounds = -3 }, []string{verification.ViolationPounds}},
		{"NaN pounds", func(s *submissions.Submission) { s.ReportedPounds = math.NaN() }, []string{verification.ViolationPounds}},
		{"limit pounds", func(s *submissions.Submission) { s.ReportedPounds = 1000 }, nil},
		{"implausible pounds", func(s *submissions.Submission) { s.ReportedPounds = 1000.1 }, []string{verification.ViolationPoundsTooLarge}},
		{"same photos", func(s *submissions.Submission) { s.AfterPhotoURL = s.BeforePhotoURL }, []string{verification.ViolationSamePhotos}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)

			got := verification.Validate(s)
			assert.Equal(t, len(tt.want) == 0, got.Valid)
			assert.Equal(t, tt.want, got.Violations)
		})
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	s := submissions.Submission{ReportedPounds: 2000}

	got := verification.Validate(s)

	assert.False(t, got.Valid)
	assert.Equal(t, []string{
		verification.ViolationUserID,
		verification.ViolationBeforePhoto,
		verification.ViolationAfterPhoto,
		verification.ViolationLocation,
		verification.ViolationPoundsTooLarge,
		verification.ViolationSamePhotos,
	}, got.Violations)
	assert.Equal(t,
		"Missing userId; Invalid before photo URL; Invalid after photo URL; "+
			"Invalid user location coordinates; Reported pounds amount seems unrealistic (>1000 lbs); "+
			"Before and after photos cannot be the same",
		got.Message(),
	)
}

func TestValidationMessageOnSuccess(t *testing.T) {
	assert.Equal(t, "Validation successful", verification.Validate(validSubmission()).Message())
}
