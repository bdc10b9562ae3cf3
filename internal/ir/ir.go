// Package ir defines the Animation IR: the declarative, versioned scene
// description that the timeline compiler consumes. Values are treated as
// immutable once handed to the compiler; modifications go through Clone.
package ir

// Operation kinds.
const (
	OpWrite   = "write"
	OpCreate  = "create"
	OpFadeIn  = "fade_in"
	OpFadeOut = "fade_out"
	OpMoveTo  = "move_to"
	OpScale   = "scale"
	OpRotate  = "rotate"
)

// Object kinds.
const (
	KindText  = "text"
	KindShape = "shape"
	KindLatex = "latex"
	KindImage = "image"
)

// Shape variants for KindShape objects.
const (
	ShapeCircle    = "circle"
	ShapeSquare    = "square"
	ShapeRectangle = "rectangle"
	ShapeTriangle  = "triangle"
)

// Output formats accepted by the render pipeline.
const (
	FormatMP4  = "mp4"
	FormatGIF  = "gif"
	FormatWebM = "webm"
)

// Style presets understood by the scene renderer.
const (
	StyleDefault    = "default"
	StyleCyberpunk  = "cyberpunk"
	StyleChalkboard = "chalkboard"
	StyleLight      = "light"
)

// Operation is a timed effect applied to one object. StartTime and Duration
// are in scene time units (seconds). Kind-specific parameters are pointers so
// that "absent" is distinguishable from zero.
type Operation struct {
	Kind           string      `json:"type"`
	StartTime      float64     `json:"start_time"`
	Duration       float64     `json:"duration"`
	TargetPosition *[3]float64 `json:"target_position,omitempty"` // move_to
	ScaleFactor    *float64    `json:"scale_factor,omitempty"`    // scale
	Angle          *float64    `json:"angle,omitempty"`           // rotate, degrees
}

// Object is a visual entity within a scene. The zero Position is the frame
// center; x must stay within [-7,7] and y within [-4,4] (camera frame).
type Object struct {
	ID          string      `json:"id"`
	Kind        string      `json:"type"`
	Content     string      `json:"content,omitempty"` // text / latex
	Shape       string      `json:"shape,omitempty"`
	Radius      *float64    `json:"radius,omitempty"`
	SideLength  *float64    `json:"side_length,omitempty"`
	Width       *float64    `json:"width,omitempty"`
	Height      *float64    `json:"height,omitempty"`
	ImageURI    string      `json:"image_uri,omitempty"` // image kind
	Position    [3]float64  `json:"position"`
	FontSize    int         `json:"font_size,omitempty"`
	Color       string      `json:"color,omitempty"`
	FillOpacity float64     `json:"fill_opacity"`
	Operations  []Operation `json:"animations"`
}

// Scene is one renderable unit: a bounded set of objects and a duration in
// (0,10]. Scene order within an IR is rendering order.
type Scene struct {
	SceneID         string   `json:"scene_id"`
	Duration        float64  `json:"duration"`
	BackgroundColor string   `json:"background_color,omitempty"`
	Objects         []Object `json:"objects"`
}

// IR is the top-level animation description. Metadata is advisory and never
// validated against scene contents.
type IR struct {
	Version  string         `json:"version"`
	Style    string         `json:"style,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Scenes   []Scene        `json:"scenes"`
}

// TotalDuration sums the declared scene durations.
func (ir *IR) TotalDuration() float64 {
	var total float64
	for _, s := range ir.Scenes {
		total += s.Duration
	}
	return total
}

// Clone returns a deep copy. Upstream conversational editing keeps every IR
// revision intact, so a job must snapshot the value it was submitted with.
func (ir *IR) Clone() *IR {
	if ir == nil {
		return nil
	}
	out := &IR{
		Version: ir.Version,
		Style:   ir.Style,
	}
	if ir.Metadata != nil {
		out.Metadata = make(map[string]any, len(ir.Metadata))
		for k, v := range ir.Metadata {
			out.Metadata[k] = v
		}
	}
	out.Scenes = make([]Scene, len(ir.Scenes))
	for i, s := range ir.Scenes {
		cs := s
		cs.Objects = make([]Object, len(s.Objects))
		for j, o := range s.Objects {
			co := o
			co.Radius = clonePtr(o.Radius)
			co.SideLength = clonePtr(o.SideLength)
			co.Width = clonePtr(o.Width)
			co.Height = clonePtr(o.Height)
			co.Operations = make([]Operation, len(o.Operations))
			for k, op := range o.Operations {
				cop := op
				if op.TargetPosition != nil {
					tp := *op.TargetPosition
					cop.TargetPosition = &tp
				}
				cop.ScaleFactor = clonePtr(op.ScaleFactor)
				cop.Angle = clonePtr(op.Angle)
				co.Operations[k] = cop
			}
			cs.Objects[j] = co
		}
		out.Scenes[i] = cs
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
