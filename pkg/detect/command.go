// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package detect

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
)

// CommandDetector runs an external detector process per image. The command
// receives the image path as its final argument and must print a JSON array
// of {"class": string, "confidence": number} objects on stdout.
type CommandDetector struct {
	command string
	args    []string
}

// NewCommandDetector creates a detector from a shell-style command line.
func NewCommandDetector(commandLine string) (*CommandDetector, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, Error.New("empty detector command")
	}
	return &CommandDetector{command: fields[0], args: fields[1:]}, nil
}

// Detect implements Detector.
func (detector *CommandDetector) Detect(ctx context.Context, imagePath string) ([]Detection, error) {
	args := append(append([]string{}, detector.args...), imagePath)
	out, err := exec.CommandContext(ctx, detector.command, args...).Output()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var wire []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(out, &wire); err != nil {
		return nil, Error.New("unparsable detector output: %v", err)
	}

	detections := make([]Detection, 0, len(wire))
	for _, d := range wire {
		detections = append(detections, Detection{Class: d.Class, Confidence: d.Confidence})
	}
	return detections, nil
}
