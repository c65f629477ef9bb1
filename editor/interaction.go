package editor

// Mode is the kind of pointer interaction in progress.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeDrag   Mode = "drag"
	ModeResize Mode = "resize"
)

// Interaction is the session's pointer state. Exactly one of Idle, Dragging
// or Resizing is active at a time.
type Interaction interface {
	Mode() Mode
	target() string
}

type (
	Idle struct{}

	Dragging struct {
		ElementID string
		Viewport  Viewport
	}

	Resizing struct {
		ElementID string
		Handle    Handle
		Viewport  Viewport
	}
)

func (Idle) Mode() Mode     { return ModeNone }
func (Dragging) Mode() Mode { return ModeDrag }
func (Resizing) Mode() Mode { return ModeResize }

func (Idle) target() string       { return "" }
func (d Dragging) target() string { return d.ElementID }
func (r Resizing) target() string { return r.ElementID }

// retarget returns the interaction with its element id replaced.
func retarget(in Interaction, id string) Interaction {
	switch v := in.(type) {
	case Dragging:
		v.ElementID = id
		return v
	case Resizing:
		v.ElementID = id
		return v
	default:
		return in
	}
}
