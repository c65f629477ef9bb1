package editor

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"guides-server/core"
)

// Field names an editable element property. The names match the flat
// element record.
type Field string

const (
	FieldContent         Field = "content"
	FieldX               Field = "x"
	FieldY               Field = "y"
	FieldWidth           Field = "width"
	FieldHeight          Field = "height"
	FieldRotation        Field = "rotation"
	FieldLayer           Field = "layer"
	FieldFontSize        Field = "font_size"
	FieldColor           Field = "color"
	FieldBackgroundColor Field = "background_color"
	FieldBorderColor     Field = "border_color"
	FieldBorderWidth     Field = "border_width"
	FieldHref            Field = "href"
)

var fields = []Field{
	FieldContent, FieldX, FieldY, FieldWidth, FieldHeight, FieldRotation, FieldLayer,
	FieldFontSize, FieldColor, FieldBackgroundColor, FieldBorderColor, FieldBorderWidth, FieldHref,
}

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrFieldNotEditable = errors.New("field not editable for element kind")
	ErrInvalidValue     = errors.New("invalid value")
)

func ParseField(s string) (Field, error) {
	for _, f := range fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

func parseNumber(field Field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w for %s: %q", ErrInvalidValue, field, value)
	}
	return f, nil
}

func parsePositive(field Field, value string) (float64, error) {
	f, err := parseNumber(field, value)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("%w for %s: must be positive", ErrInvalidValue, field)
	}
	return f, nil
}

func notEditable(field Field, kind core.Kind) error {
	return fmt.Errorf("%w: %s on %s", ErrFieldNotEditable, field, kind)
}

// applyProperty writes a typed-in value onto e. Geometry passes through
// unclamped except for the width and height floor.
func applyProperty(e *core.Element, field Field, value string) error {
	switch field {
	case FieldX, FieldY, FieldWidth, FieldHeight, FieldRotation:
		f, err := parseNumber(field, value)
		if err != nil {
			return err
		}
		switch field {
		case FieldX:
			e.Frame.X = f
		case FieldY:
			e.Frame.Y = f
		case FieldWidth:
			e.Frame.Width = math.Max(MinSize, f)
		case FieldHeight:
			e.Frame.Height = math.Max(MinSize, f)
		case FieldRotation:
			e.Rotation = f
		}
		return nil
	case FieldLayer:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %q", ErrInvalidValue, field, value)
		}
		e.Layer = n
		return nil
	}

	body, err := setBodyField(e.Body, field, value)
	if err != nil {
		return err
	}
	e.Body = body
	return nil
}

func setBodyField(body core.Body, field Field, value string) (core.Body, error) {
	switch b := body.(type) {
	case core.Text:
		switch field {
		case FieldContent:
			b.Text = value
		case FieldFontSize:
			f, err := parsePositive(field, value)
			if err != nil {
				return nil, err
			}
			b.FontSize = f
		case FieldColor:
			b.Color = value
		case FieldBackgroundColor:
			b.Background = value
		default:
			return nil, notEditable(field, b.Kind())
		}
		return b, nil
	case core.Link:
		switch field {
		case FieldContent:
			b.Text = value
		case FieldHref:
			b.Href = value
		case FieldFontSize:
			f, err := parsePositive(field, value)
			if err != nil {
				return nil, err
			}
			b.FontSize = f
		case FieldColor:
			b.Color = value
		default:
			return nil, notEditable(field, b.Kind())
		}
		return b, nil
	case core.Image:
		if field != FieldContent {
			return nil, notEditable(field, b.Kind())
		}
		b.Src = value
		return b, nil
	case core.Video:
		if field != FieldContent {
			return nil, notEditable(field, b.Kind())
		}
		b.Src = value
		return b, nil
	case core.Rectangle:
		s, err := setShapeField(b.Shape, b.Kind(), field, value)
		return core.Rectangle{Shape: s}, err
	case core.Circle:
		s, err := setShapeField(b.Shape, b.Kind(), field, value)
		return core.Circle{Shape: s}, err
	case core.Triangle:
		s, err := setShapeField(b.Shape, b.Kind(), field, value)
		return core.Triangle{Shape: s}, err
	}
	return nil, fmt.Errorf("%w: unsupported body %T", core.ErrInvalidElement, body)
}

func setShapeField(s core.Shape, kind core.Kind, field Field, value string) (core.Shape, error) {
	switch field {
	case FieldBackgroundColor:
		s.Fill = value
	case FieldBorderColor:
		s.BorderColor = value
	case FieldBorderWidth:
		f, err := parseNumber(field, value)
		if err != nil {
			return s, err
		}
		if f < 0 {
			return s, fmt.Errorf("%w for %s: must not be negative", ErrInvalidValue, field)
		}
		s.BorderWidth = f
	default:
		return s, notEditable(field, kind)
	}
	return s, nil
}

// defaultBody returns the body and size a freshly added element starts with.
func defaultBody(kind core.Kind) (core.Body, float64, float64, error) {
	shape := core.Shape{Fill: "#8b5cf6", BorderColor: "#000000", BorderWidth: 2}

	switch kind {
	case core.KindText:
		return core.Text{Text: "Click to edit text", FontSize: 16, Color: "#000000", Background: "transparent"}, 200, 50, nil
	case core.KindImage:
		return core.Image{}, 200, 150, nil
	case core.KindVideo:
		return core.Video{}, 300, 200, nil
	case core.KindLink:
		return core.Link{Text: "https://example.com", Href: "https://example.com", FontSize: 16, Color: "#2563eb"}, 200, 50, nil
	case core.KindRectangle:
		return core.Rectangle{Shape: shape}, 100, 100, nil
	case core.KindCircle:
		return core.Circle{Shape: shape}, 100, 100, nil
	case core.KindTriangle:
		return core.Triangle{Shape: shape}, 100, 100, nil
	}
	return nil, 0, 0, fmt.Errorf("unknown element kind %q: %w", kind, core.ErrInvalidElement)
}
