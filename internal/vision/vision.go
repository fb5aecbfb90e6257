// Package vision estimates how much trash appears in a photo from object
// and label detections, and adapts a generative vision model as the detector.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrAnalysisFailed is returned when neither detection produced a result.
var ErrAnalysisFailed = errors.New("image analysis failed")

// Detection is a localized object found in an image.
type Detection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Label is a content label describing an image.
type Label struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Detector is the image-analysis capability: two independent read-only
// operations over an image locator.
type Detector interface {
	DetectObjects(ctx context.Context, locator string) ([]Detection, error)
	DetectLabels(ctx context.Context, locator string) ([]Label, error)
}

// Categories counts categorized trash objects. Items lists the matched
// object names per category.
type Categories struct {
	Plastic    int                   `json:"plastic"`
	Paper      int                   `json:"paper"`
	Glass      int                   `json:"glass"`
	Metal      int                   `json:"metal"`
	Organic    int                   `json:"organic"`
	Electronic int                   `json:"electronic"`
	Other      int                   `json:"other"`
	Total      int                   `json:"total"`
	Items      map[Category][]string `json:"details"`
}

func (c *Categories) add(cat Category, name string) {
	switch cat {
	case Plastic:
		c.Plastic++
	case Paper:
		c.Paper++
	case Glass:
		c.Glass++
	case Metal:
		c.Metal++
	case Organic:
		c.Organic++
	case Electronic:
		c.Electronic++
	case Other:
		c.Other++
	default:
		return
	}
	c.Total++
	c.Items[cat] = append(c.Items[cat], name)
}

// Report is the analysis of a single image.
type Report struct {
	TrashCount      int        `json:"trashCount"`
	Confidence      float64    `json:"confidence"`
	ObjectsDetected int        `json:"objectsDetected"`
	LabelsDetected  int        `json:"labelsDetected"`
	Categories      Categories `json:"trashCategories"`
}

// Summarize combines detections into a Report. The trash count is the
// largest of the object count, the label count and the categorized total.
func Summarize(objects []Detection, labels []Label) Report {
	r := Report{
		ObjectsDetected: len(objects),
		LabelsDetected:  len(labels),
		Categories:      Categories{Items: make(map[Category][]string)},
	}

	objectCount := 0
	for _, o := range objects {
		if cat, ok := Classify(o.Name); ok {
			objectCount++
			r.Categories.add(cat, o.Name)
		}
	}

	labelCount := 0
	for _, l := range labels {
		if IsTrashLabel(l.Description) {
			labelCount++
		}
	}

	r.TrashCount = max(objectCount, labelCount, r.Categories.Total)

	conf := 0.5
	if len(objects) > 0 {
		conf += 0.3
	}
	if len(labels) > 0 {
		conf += 0.2
	}
	if r.Categories.Total > 0 {
		conf += 0.1
	}
	r.Confidence = min(conf, 1.0)

	return r
}

// Analyzer runs both detections for an image and summarizes them.
type Analyzer struct {
	detector Detector
	logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer over detector.
func NewAnalyzer(detector Detector, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		detector: detector,
		logger:   logger.With("system", "vision"),
	}
}

// Analyze issues object and label detection concurrently. A failing
// detection degrades to an empty list; when both fail the error wraps
// ErrAnalysisFailed.
func (a *Analyzer) Analyze(ctx context.Context, locator string) (Report, error) {
	var (
		objects          []Detection
		labels           []Label
		objErr, labelErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		objects, objErr = a.detector.DetectObjects(gctx, locator)
		return nil
	})
	g.Go(func() error {
		labels, labelErr = a.detector.DetectLabels(gctx, locator)
		return nil
	})
	_ = g.Wait()

	if objErr != nil && labelErr != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrAnalysisFailed, errors.Join(objErr, labelErr))
	}
	if objErr != nil {
		a.logger.WarnContext(ctx, "object detection failed", "locator", locator, "error", objErr)
		objects = nil
	}
	if labelErr != nil {
		a.logger.WarnContext(ctx, "label detection failed", "locator", locator, "error", labelErr)
		labels = nil
	}

	return Summarize(objects, labels), nil
}
