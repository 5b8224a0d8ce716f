package layout

import (
	"fmt"
	"math"
)

// PageArea is the fixed-size printable region of one output page.
// All dimensions are PDF points (1/72 inch).
type PageArea struct {
	Width        float64
	Height       float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
}

// NewPageArea builds a PageArea with a uniform margin on all sides.
func NewPageArea(size PageSize, margin float64) PageArea {
	return PageArea{
		Width:        size.Width,
		Height:       size.Height,
		MarginTop:    margin,
		MarginBottom: margin,
		MarginLeft:   margin,
		MarginRight:  margin,
	}
}

// AvailableWidth returns the printable width between the side margins.
func (a PageArea) AvailableWidth() float64 { return a.Width - a.MarginLeft - a.MarginRight }

// AvailableHeight returns the printable height between the vertical margins.
func (a PageArea) AvailableHeight() float64 { return a.Height - a.MarginTop - a.MarginBottom }

// Validate checks the margin invariants: every margin must stay below half of
// the corresponding page dimension so that the printable area remains positive.
func (a PageArea) Validate() error {
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("page area: non-positive page size %gx%g", a.Width, a.Height)
	}
	if a.MarginLeft < 0 || a.MarginRight < 0 || a.MarginTop < 0 || a.MarginBottom < 0 {
		return fmt.Errorf("page area: negative margin")
	}
	if a.MarginLeft >= a.Width/2 || a.MarginRight >= a.Width/2 {
		return fmt.Errorf("page area: horizontal margins %g/%g exceed half of width %g", a.MarginLeft, a.MarginRight, a.Width)
	}
	if a.MarginTop >= a.Height/2 || a.MarginBottom >= a.Height/2 {
		return fmt.Errorf("page area: vertical margins %g/%g exceed half of height %g", a.MarginTop, a.MarginBottom, a.Height)
	}
	return nil
}

// ImageDescriptor identifies one source image and its pixel dimensions.
// It is produced by the image prober and consumed by exactly one placement
// computation.
type ImageDescriptor struct {
	Identifier  string
	PixelWidth  int
	PixelHeight int
}

// Placement is the computed position and size of one image within a page area.
// Coordinates use the PDF convention: origin at the bottom-left of the page,
// y growing upwards. X/Y locate the bottom-left corner of the rendered box.
type Placement struct {
	X              float64
	Y              float64
	RenderWidth    float64
	RenderHeight   float64
	ScaledHeight   float64
	OverflowHeight float64
}

// ComputePlacement scales img to fill the available width of area, preserving
// the aspect ratio on the width axis, and anchors it to the top of the
// printable region. Height never exceeds the available height; the part of the
// scaled image that would is reported as OverflowHeight and ends up cropped
// from the bottom by the writer.
//
// Narrow images are upscaled until they fill the available width. That can
// distort very tall, narrow sources but matches the established output of this
// tool, so it stays.
func ComputePlacement(area PageArea, img ImageDescriptor) (Placement, error) {
	if err := area.Validate(); err != nil {
		return Placement{}, err
	}
	if img.PixelWidth <= 0 || img.PixelHeight <= 0 {
		return Placement{}, fmt.Errorf("image %s: invalid pixel dimensions %dx%d", img.Identifier, img.PixelWidth, img.PixelHeight)
	}

	scale := area.AvailableWidth() / float64(img.PixelWidth)
	scaledH := float64(img.PixelHeight) * scale
	renderH := math.Min(scaledH, area.AvailableHeight())

	return Placement{
		X:              area.MarginLeft,
		Y:              area.Height - area.MarginTop - renderH,
		RenderWidth:    area.AvailableWidth(),
		RenderHeight:   renderH,
		ScaledHeight:   scaledH,
		OverflowHeight: math.Max(0, scaledH-area.AvailableHeight()),
	}, nil
}
