// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the label and display-color cosmetics attached to
// confirmed tracks. Neither has any effect on the tracking logic.
package tracker

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const labelPrefix = "pedestrian"

// trackLabel formats the label attached to a confirmed track's detections,
// e.g. "pedestrian_7".
func trackLabel(id int64) string {
	return labelPrefix + "_" + strconv.FormatInt(id, 10)
}

// idFromLabel parses the track id back out of a label produced by trackLabel.
func idFromLabel(label string) (int64, error) {
	parts := strings.Split(label, "_")
	if len(parts) != 2 || parts[0] != labelPrefix {
		return 0, errors.Errorf("unable to parse track label %q", label)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse track label %q", label)
	}
	return id, nil
}

// displayPalette cycles per track id so neighbouring tracks render in
// different colors.
var displayPalette = []color.RGBA{
	{R: 230, G: 25, B: 75, A: 255},
	{R: 60, G: 180, B: 75, A: 255},
	{R: 255, G: 225, B: 25, A: 255},
	{R: 0, G: 130, B: 200, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 145, G: 30, B: 180, A: 255},
	{R: 70, G: 240, B: 240, A: 255},
	{R: 240, G: 50, B: 230, A: 255},
}

func colorForID(id int64) color.RGBA {
	return displayPalette[int(id)%len(displayPalette)]
}
