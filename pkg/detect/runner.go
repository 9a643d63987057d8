// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package detect

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Record is one staged detection result, keyed by (message id, channel).
type Record struct {
	MessageID     int64
	Channel       string
	ImagePath     string
	DetectedClass string
	Confidence    float64
	Category      string
	NumDetections int
}

// Config holds the enrichment runner settings.
type Config struct {
	ImagesDir string
	OutputCSV string
	Progress  bool
}

// Runner walks the media asset directory, runs the detector on each image
// and stages the results. Per-image failures are logged and counted; they
// never abort the run.
type Runner struct {
	log      *zap.Logger
	detector Detector
	config   Config
}

// NewRunner creates an enrichment runner.
func NewRunner(log *zap.Logger, detector Detector, config Config) *Runner {
	return &Runner{log: log, detector: detector, config: config}
}

// Run processes all images and writes the detection CSV. The CSV is always
// produced, header included, even when no image yields a detection.
func (runner *Runner) Run(ctx context.Context) (_ []Record, errorCount int, err error) {
	defer mon.Task()(&ctx)(&err)

	images, err := runner.scanImages()
	if err != nil {
		return nil, 0, err
	}
	runner.log.Info("processing images", zap.Int("count", len(images)))

	var bar *pb.ProgressBar
	if runner.config.Progress && len(images) > 0 {
		bar = pb.StartNew(len(images))
	}

	var records []Record
	for _, imagePath := range images {
		if bar != nil {
			bar.Increment()
		}
		if err := ctx.Err(); err != nil {
			return nil, errorCount, Error.Wrap(err)
		}

		messageID, channel, ok := messageInfo(imagePath)
		if !ok {
			errorCount++
			runner.log.Warn("cannot parse message info from path", zap.String("path", imagePath))
			continue
		}

		detections, err := runner.detector.Detect(ctx, imagePath)
		if err != nil {
			errorCount++
			runner.log.Warn("detection failed", zap.String("path", imagePath), zap.Error(err))
			continue
		}

		category, maxConfidence := Classify(detections)
		records = append(records, Record{
			MessageID:     messageID,
			Channel:       channel,
			ImagePath:     filepath.ToSlash(imagePath),
			DetectedClass: primary(detections),
			Confidence:    maxConfidence,
			Category:      category,
			NumDetections: len(detections),
		})
	}
	if bar != nil {
		bar.Finish()
	}

	if err := WriteCSV(runner.config.OutputCSV, records); err != nil {
		return nil, errorCount, err
	}

	runner.log.Info("detection complete",
		zap.Int("records", len(records)),
		zap.Int("errors", errorCount),
		zap.String("output", runner.config.OutputCSV))
	return records, errorCount, nil
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".gif": true, ".webp": true,
}

// scanImages finds all image files under the images directory, sorted by
// the walk order. A missing directory yields an empty list.
func (runner *Runner) scanImages() ([]string, error) {
	if _, err := os.Stat(runner.config.ImagesDir); os.IsNotExist(err) {
		runner.log.Warn("images directory does not exist", zap.String("dir", runner.config.ImagesDir))
		return nil, nil
	}

	var images []string
	err := filepath.Walk(runner.config.ImagesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return images, nil
}

// messageInfo recovers the natural key from an asset path of the form
// <images dir>/<channel>/<message_id>.<ext>.
func messageInfo(imagePath string) (messageID int64, channel string, ok bool) {
	dir, file := filepath.Split(filepath.ToSlash(imagePath))
	channel = filepath.Base(filepath.Clean(dir))
	name := strings.TrimSuffix(file, filepath.Ext(file))

	messageID, err := strconv.ParseInt(name, 10, 64)
	if err != nil || channel == "." || channel == "/" {
		return 0, "", false
	}
	return messageID, channel, true
}

// csvHeader is the detection staging CSV header.
var csvHeader = []string{
	"message_id", "channel_name", "image_path", "detected_class",
	"confidence_score", "image_category", "num_detections",
}

// WriteCSV atomically writes the detection staging CSV: temp sibling file,
// then a single rename. The header row is written even for zero records.
func WriteCSV(path string, records []Record) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return Error.Wrap(err)
	}

	fh, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, fh.Close())
			err = errs.Combine(err, os.Remove(fh.Name()))
		}
	}()

	writer := csv.NewWriter(fh)
	if err := writer.Write(csvHeader); err != nil {
		return Error.Wrap(err)
	}
	for _, record := range records {
		err := writer.Write([]string{
			strconv.FormatInt(record.MessageID, 10),
			record.Channel,
			record.ImagePath,
			record.DetectedClass,
			fmt.Sprintf("%.4f", record.Confidence),
			record.Category,
			strconv.Itoa(record.NumDetections),
		})
		if err != nil {
			return Error.Wrap(err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return Error.Wrap(err)
	}

	if err := fh.Sync(); err != nil {
		return Error.Wrap(err)
	}
	if err := fh.Close(); err != nil {
		return Error.Wrap(err)
	}
	if err := os.Rename(fh.Name(), path); err != nil {
		return Error.Wrap(err)
	}
	return nil
}
