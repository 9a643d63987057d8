// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package detect consumes an external object detector to enrich staged
// media assets, classifies each image from its detections and stages the
// results as a CSV for the warehouse loader.
package detect

import (
	"context"

	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

// Error is the default detect error class
var Error = errs.Class("detect error")

var mon = monkit.Package()

// Detection is a single detected object.
type Detection struct {
	Class      string
	Confidence float64
}

// Detector is the external enrichment collaborator: image path in,
// detections out. Implementations are black boxes to this package.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, imagePath string) ([]Detection, error)

// Detect implements Detector.
func (fn DetectorFunc) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	return fn(ctx, imagePath)
}

// Image categories derived from detections.
const (
	CategoryPromotional    = "promotional"     // person and product
	CategoryProductDisplay = "product_display" // product only
	CategoryLifestyle      = "lifestyle"       // person only
	CategoryOther          = "other"
)

// productClasses are the detector classes treated as products.
var productClasses = map[string]bool{
	"bottle": true, "wine glass": true, "cup": true, "fork": true,
	"knife": true, "spoon": true, "bowl": true, "banana": true,
	"apple": true, "sandwich": true, "orange": true, "broccoli": true,
	"carrot": true, "hot dog": true, "pizza": true, "donut": true,
	"cake": true, "chair": true, "couch": true, "potted plant": true,
	"bed": true, "dining table": true, "toilet": true, "tv": true,
	"laptop": true, "mouse": true, "remote": true, "keyboard": true,
	"cell phone": true, "microwave": true, "oven": true, "toaster": true,
	"sink": true, "refrigerator": true, "book": true, "clock": true,
	"vase": true, "scissors": true, "teddy bear": true,
	"hair drier": true, "toothbrush": true,
}

// Classify derives a coarse image category and the maximum confidence from
// a detection list.
func Classify(detections []Detection) (category string, maxConfidence float64) {
	if len(detections) == 0 {
		return CategoryOther, 0
	}

	hasPerson, hasProduct := false, false
	for _, detection := range detections {
		if detection.Class == "person" {
			hasPerson = true
		}
		if productClasses[detection.Class] {
			hasProduct = true
		}
		if detection.Confidence > maxConfidence {
			maxConfidence = detection.Confidence
		}
	}

	switch {
	case hasPerson && hasProduct:
		return CategoryPromotional, maxConfidence
	case hasProduct:
		return CategoryProductDisplay, maxConfidence
	case hasPerson:
		return CategoryLifestyle, maxConfidence
	default:
		return CategoryOther, maxConfidence
	}
}

// primary returns the class of the highest-confidence detection, or "none".
func primary(detections []Detection) string {
	if len(detections) == 0 {
		return "none"
	}
	best := detections[0]
	for _, detection := range detections[1:] {
		if detection.Confidence > best.Confidence {
			best = detection
		}
	}
	return best.Class
}
