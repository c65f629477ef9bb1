package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"guides-server/core"
)

// Session is the in-memory element collection of one guide being edited.
// It is not safe for concurrent use; Registry serializes access.
type Session struct {
	guideID     string
	elements    []core.Element
	selected    string
	interaction Interaction
	dirty       bool

	now   func() time.Time
	newID func() string
}

func NewSession(guideID string, elements []core.Element) *Session {
	s := &Session{
		guideID:     guideID,
		elements:    make([]core.Element, len(elements)),
		interaction: Idle{},
		now:         time.Now,
		newID: func() string {
			return "temp-" + uuid.NewString()
		},
	}
	copy(s.elements, elements)
	return s
}

func (s *Session) GuideID() string { return s.guideID }

// Selected returns the selected element id, or "" when nothing is selected.
func (s *Session) Selected() string { return s.selected }

func (s *Session) Interaction() Interaction { return s.interaction }

// Dirty reports whether the collection changed since the last save.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) index(id string) int {
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) Element(id string) (core.Element, bool) {
	i := s.index(id)
	if i < 0 {
		return core.Element{}, false
	}
	return s.elements[i], true
}

// Snapshot returns the collection in insertion order. The caller owns the
// returned slice.
func (s *Session) Snapshot() []core.Element {
	out := make([]core.Element, len(s.elements))
	copy(out, s.elements)
	return out
}

// Add appends a new element of the given kind with default geometry and
// style, and selects it. A non-empty content replaces the default content.
// Shapes carry no content, so content for a shape is ErrFieldNotEditable
// and nothing is added.
func (s *Session) Add(kind core.Kind, content string) (core.Element, error) {
	body, width, height, err := defaultBody(kind)
	if err != nil {
		return core.Element{}, err
	}

	e := core.Element{
		ID:        s.newID(),
		Frame:     core.Frame{X: 100, Y: 100, Width: width, Height: height},
		Layer:     len(s.elements),
		CreatedAt: s.now(),
		Body:      body,
	}
	if content != "" {
		b, err := setBodyField(e.Body, FieldContent, content)
		if err != nil {
			return core.Element{}, err
		}
		e.Body = b
	}

	s.elements = append(s.elements, e)
	s.selected = e.ID
	s.dirty = true
	return e, nil
}

// SetProperty applies a direct edit. An unknown id is a no-op.
func (s *Session) SetProperty(id string, field Field, value string) error {
	i := s.index(id)
	if i < 0 {
		return nil
	}

	e := s.elements[i]
	if err := applyProperty(&e, field, value); err != nil {
		return err
	}
	s.elements[i] = e
	s.dirty = true
	return nil
}

// Delete removes an element without reordering the rest. Selection and any
// interaction targeting it are cleared.
func (s *Session) Delete(id string) {
	i := s.index(id)
	if i < 0 {
		return
	}

	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	if s.interaction.target() == id {
		s.interaction = Idle{}
	}
	s.dirty = true
}

func (s *Session) Select(id string) {
	if s.index(id) < 0 {
		return
	}
	s.selected = id
}

func (s *Session) ClearSelection() {
	s.selected = ""
}

// BeginDrag makes id the drag target, ending any other interaction.
func (s *Session) BeginDrag(id string, vp Viewport) {
	if s.index(id) < 0 {
		return
	}
	s.interaction = Dragging{ElementID: id, Viewport: vp}
}

// UpdateDrag re-centres the drag target under the pointer.
func (s *Session) UpdateDrag(px, py float64) {
	d, ok := s.interaction.(Dragging)
	if !ok {
		return
	}
	i := s.index(d.ElementID)
	if i < 0 {
		return
	}
	s.elements[i].Frame = dragFrame(s.elements[i].Frame, d.Viewport, px, py)
	s.dirty = true
}

func (s *Session) EndDrag() {
	if _, ok := s.interaction.(Dragging); ok {
		s.interaction = Idle{}
	}
}

// BeginResize makes id the resize target for the given corner, ending any
// other interaction.
func (s *Session) BeginResize(id string, h Handle, vp Viewport) {
	if s.index(id) < 0 {
		return
	}
	s.interaction = Resizing{ElementID: id, Handle: h, Viewport: vp}
}

func (s *Session) UpdateResize(px, py float64) {
	r, ok := s.interaction.(Resizing)
	if !ok {
		return
	}
	i := s.index(r.ElementID)
	if i < 0 {
		return
	}
	s.elements[i].Frame = resizeFrame(s.elements[i].Frame, r.Handle, r.Viewport, px, py)
	s.dirty = true
}

func (s *Session) EndResize() {
	if _, ok := s.interaction.(Resizing); ok {
		s.interaction = Idle{}
	}
}

// Save hands a snapshot to the store. On failure the collection is left as
// it was. On success the stored ids replace the temporary ones. An
// interaction in progress stays active.
func (s *Session) Save(ctx context.Context, store core.ElementReplacer) error {
	snapshot := s.Snapshot()
	log := logrus.WithFields(logrus.Fields{
		"guide_id": s.guideID,
		"elements": len(snapshot),
	})

	stored, err := store.ReplaceElements(ctx, s.guideID, snapshot)
	if err != nil {
		log.WithError(err).Error("Failed to save guide elements")
		return fmt.Errorf("save guide %s: %w", s.guideID, err)
	}
	if len(stored) != len(snapshot) {
		err := fmt.Errorf("store returned %d elements, want %d", len(stored), len(snapshot))
		log.WithError(err).Error("Failed to adopt stored element ids")
		return fmt.Errorf("save guide %s: %w", s.guideID, err)
	}

	ids := make(map[string]string, len(stored))
	for i := range snapshot {
		ids[snapshot[i].ID] = stored[i].ID
	}
	for i := range s.elements {
		if id, ok := ids[s.elements[i].ID]; ok {
			s.elements[i].ID = id
		}
	}
	if id, ok := ids[s.selected]; ok {
		s.selected = id
	}
	if id, ok := ids[s.interaction.target()]; ok {
		s.interaction = retarget(s.interaction, id)
	}
	s.dirty = false

	log.Info("Guide elements saved successfully")
	return nil
}
