package editor

import (
	"fmt"
	"math"

	"guides-server/core"
)

// MinSize is the floor, in pixels, for element width and height.
const MinSize = 20.0

// Viewport is the canvas size at the time an interaction starts.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Handle is the corner grabbed to resize an element.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

func ParseHandle(s string) (Handle, error) {
	switch h := Handle(s); h {
	case HandleNW, HandleNE, HandleSW, HandleSE:
		return h, nil
	}
	return "", fmt.Errorf("unknown resize handle %q", s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// dragFrame centres the frame under the pointer and keeps it inside the
// viewport.
func dragFrame(f core.Frame, vp Viewport, px, py float64) core.Frame {
	f.X = clamp(px-f.Width/2, 0, vp.Width-f.Width)
	f.Y = clamp(py-f.Height/2, 0, vp.Height-f.Height)
	return f
}

// resizeFrame moves the edges adjacent to the grabbed corner while the
// opposite corner stays put.
func resizeFrame(f core.Frame, h Handle, vp Viewport, px, py float64) core.Frame {
	maxX := vp.Width - MinSize
	maxY := vp.Height - MinSize
	out := f

	switch h {
	case HandleSE, HandleNE:
		out.Width = math.Max(MinSize, math.Min(px-f.X, maxX-f.X))
	case HandleSW, HandleNW:
		right := f.X + f.Width
		out.X = clamp(px, 0, math.Min(right-MinSize, maxX))
		out.Width = math.Max(MinSize, right-out.X)
	}

	switch h {
	case HandleSE, HandleSW:
		out.Height = math.Max(MinSize, math.Min(py-f.Y, maxY-f.Y))
	case HandleNE, HandleNW:
		bottom := f.Y + f.Height
		out.Y = clamp(py, 0, math.Min(bottom-MinSize, maxY))
		out.Height = math.Max(MinSize, bottom-out.Y)
	}

	return out
}
