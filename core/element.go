package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names the variant of an element body. It is fixed at creation.
type Kind string

const (
	KindText      Kind = "text"
	KindImage     Kind = "image"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindTriangle  Kind = "triangle"
	KindVideo     Kind = "video"
	KindLink      Kind = "link"
)

// Kinds lists every element kind in palette order.
var Kinds = []Kind{KindText, KindImage, KindRectangle, KindCircle, KindTriangle, KindVideo, KindLink}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown element kind %q: %w", s, ErrInvalidElement)
}

type (
	// Frame is the element's bounding box in canvas-local pixels.
	Frame struct {
		X      float64
		Y      float64
		Width  float64
		Height float64
	}

	// Element is one visual primitive placed on a guide's canvas.
	Element struct {
		ID        string
		Frame     Frame
		Rotation  float64
		Layer     int
		CreatedAt time.Time
		Body      Body
	}

	// Body carries the kind-specific payload of an element. The set of
	// implementations is closed: Text, Image, Rectangle, Circle, Triangle,
	// Video and Link.
	Body interface {
		Kind() Kind
		isBody()
	}

	Text struct {
		Text       string
		FontSize   float64
		Color      string
		Background string
	}

	Image struct {
		Src string
	}

	Video struct {
		Src string
	}

	Link struct {
		Text     string
		Href     string
		FontSize float64
		Color    string
	}

	// Shape holds the style shared by the geometric primitives.
	Shape struct {
		Fill        string
		BorderColor string
		BorderWidth float64
	}

	Rectangle struct{ Shape }
	Circle    struct{ Shape }
	Triangle  struct{ Shape }
)

func (Text) Kind() Kind      { return KindText }
func (Image) Kind() Kind     { return KindImage }
func (Video) Kind() Kind     { return KindVideo }
func (Link) Kind() Kind      { return KindLink }
func (Rectangle) Kind() Kind { return KindRectangle }
func (Circle) Kind() Kind    { return KindCircle }
func (Triangle) Kind() Kind  { return KindTriangle }

func (Text) isBody()      {}
func (Image) isBody()     {}
func (Video) isBody()     {}
func (Link) isBody()      {}
func (Rectangle) isBody() {}
func (Circle) isBody()    {}
func (Triangle) isBody()  {}

func (e Element) Kind() Kind {
	if e.Body == nil {
		return ""
	}
	return e.Body.Kind()
}

// Content returns the semantic payload: text for text and link elements,
// the source for image and video elements, and "" for shapes.
func (e Element) Content() string {
	switch b := e.Body.(type) {
	case Text:
		return b.Text
	case Link:
		return b.Text
	case Image:
		return b.Src
	case Video:
		return b.Src
	default:
		return ""
	}
}

// ElementRecord is the flat form of an element used on the wire and in
// storage. Everything except type, content, x and y is optional.
type ElementRecord struct {
	ID              string    `json:"id"`
	Type            Kind      `json:"type"`
	Content         string    `json:"content"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Width           *float64  `json:"width,omitempty"`
	Height          *float64  `json:"height,omitempty"`
	FontSize        *float64  `json:"font_size,omitempty"`
	Color           *string   `json:"color,omitempty"`
	BackgroundColor *string   `json:"background_color,omitempty"`
	BorderColor     *string   `json:"border_color,omitempty"`
	BorderWidth     *float64  `json:"border_width,omitempty"`
	Rotation        *float64  `json:"rotation,omitempty"`
	Layer           *int      `json:"layer,omitempty"`
	Href            *string   `json:"href,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}

// Record flattens the element.
func (e Element) Record() ElementRecord {
	width, height, layer := e.Frame.Width, e.Frame.Height, e.Layer
	r := ElementRecord{
		ID:        e.ID,
		Type:      e.Kind(),
		Content:   e.Content(),
		X:         e.Frame.X,
		Y:         e.Frame.Y,
		Width:     &width,
		Height:    &height,
		Rotation:  optFloat(e.Rotation),
		Layer:     &layer,
		CreatedAt: e.CreatedAt,
	}

	switch b := e.Body.(type) {
	case Text:
		r.FontSize = optFloat(b.FontSize)
		r.Color = optString(b.Color)
		r.BackgroundColor = optString(b.Background)
	case Link:
		r.FontSize = optFloat(b.FontSize)
		r.Color = optString(b.Color)
		r.Href = optString(b.Href)
	case Rectangle:
		r.applyShape(b.Shape)
	case Circle:
		r.applyShape(b.Shape)
	case Triangle:
		r.applyShape(b.Shape)
	case Image, Video:
	}
	return r
}

func (r *ElementRecord) applyShape(s Shape) {
	r.BackgroundColor = optString(s.Fill)
	r.BorderColor = optString(s.BorderColor)
	r.BorderWidth = optFloat(s.BorderWidth)
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil || *p == 0 {
		return def
	}
	return *p
}

// ElementFromRecord rebuilds an element from its flat form. Missing style
// fields fall back to the defaults the editor renders with.
func ElementFromRecord(r ElementRecord) (Element, error) {
	kind, err := ParseKind(string(r.Type))
	if err != nil {
		return Element{}, err
	}

	e := Element{
		ID: r.ID,
		Frame: Frame{
			X:      r.X,
			Y:      r.Y,
			Width:  floatOr(r.Width, 200),
			Height: floatOr(r.Height, 150),
		},
		Rotation:  floatOr(r.Rotation, 0),
		CreatedAt: r.CreatedAt,
	}
	if r.Layer != nil {
		e.Layer = *r.Layer
	}

	shape := Shape{
		Fill:        stringOr(r.BackgroundColor, "transparent"),
		BorderColor: stringOr(r.BorderColor, "#000000"),
		BorderWidth: floatOr(r.BorderWidth, 1),
	}

	switch kind {
	case KindText:
		e.Body = Text{
			Text:       r.Content,
			FontSize:   floatOr(r.FontSize, 16),
			Color:      stringOr(r.Color, "#000000"),
			Background: stringOr(r.BackgroundColor, "transparent"),
		}
	case KindLink:
		e.Body = Link{
			Text:     r.Content,
			Href:     stringOr(r.Href, ""),
			FontSize: floatOr(r.FontSize, 16),
			Color:    stringOr(r.Color, "#000000"),
		}
	case KindImage:
		e.Body = Image{Src: r.Content}
	case KindVideo:
		e.Body = Video{Src: r.Content}
	case KindRectangle:
		e.Body = Rectangle{shape}
	case KindCircle:
		e.Body = Circle{shape}
	case KindTriangle:
		e.Body = Triangle{shape}
	}
	return e, nil
}

func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Record())
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var r ElementRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	el, err := ElementFromRecord(r)
	if err != nil {
		return err
	}
	*e = el
	return nil
}
