package ir

import "fmt"

// Frame bounds of the engine camera. Positions outside are rejected before
// any render work starts.
const (
	MinX, MaxX = -7.0, 7.0
	MinY, MaxY = -4.0, 4.0
)

// Structural limits.
const (
	MaxScenes          = 20
	MaxObjectsPerScene = 10
	MaxSceneDuration   = 10.0
	MinFontSize        = 12
	MaxFontSize        = 120
)

// Violation describes one validation failure. ObjectID is empty for
// scene-level or IR-level problems.
type Violation struct {
	SceneID  string `json:"scene_id,omitempty"`
	ObjectID string `json:"object_id,omitempty"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (v Violation) String() string {
	s := v.Field
	if v.SceneID != "" {
		s = v.SceneID + "." + s
	}
	if v.ObjectID != "" {
		s = s + " (object " + v.ObjectID + ")"
	}
	return s + ": " + v.Message
}

// Validate checks the complete IR and returns every violation found, in
// check order. A nil slice means the IR is valid. Validate is pure: it never
// mutates its input and never touches the filesystem or network.
func Validate(in *IR) []Violation {
	if in == nil {
		return []Violation{{Field: "ir", Message: "animation IR is required"}}
	}

	var out []Violation

	if len(in.Scenes) < 1 {
		out = append(out, Violation{Field: "scenes", Message: "must have at least one scene"})
	}
	if len(in.Scenes) > MaxScenes {
		out = append(out, Violation{Field: "scenes", Message: fmt.Sprintf("too many scenes: %d (max %d)", len(in.Scenes), MaxScenes)})
	}

	seenScenes := make(map[string]bool, len(in.Scenes))
	for _, scene := range in.Scenes {
		out = append(out, validateScene(scene, seenScenes)...)
	}
	return out
}

func validateScene(scene Scene, seen map[string]bool) []Violation {
	var out []Violation

	if scene.SceneID == "" {
		out = append(out, Violation{Field: "scene_id", Message: "scene_id is required"})
	} else if seen[scene.SceneID] {
		out = append(out, Violation{SceneID: scene.SceneID, Field: "scene_id", Message: "duplicate scene_id"})
	} else {
		seen[scene.SceneID] = true
	}

	if scene.Duration <= 0 || scene.Duration > MaxSceneDuration {
		out = append(out, Violation{
			SceneID: scene.SceneID,
			Field:   "duration",
			Message: fmt.Sprintf("duration must be in (0,%g], got %g", MaxSceneDuration, scene.Duration),
		})
	}
	if len(scene.Objects) > MaxObjectsPerScene {
		out = append(out, Violation{
			SceneID: scene.SceneID,
			Field:   "objects",
			Message: fmt.Sprintf("too many objects: %d (max %d)", len(scene.Objects), MaxObjectsPerScene),
		})
	}

	seenObjects := make(map[string]bool, len(scene.Objects))
	for _, obj := range scene.Objects {
		out = append(out, validateObject(scene.SceneID, obj, seenObjects)...)
	}
	return out
}

func validateObject(sceneID string, obj Object, seen map[string]bool) []Violation {
	var out []Violation

	fail := func(field, msg string) {
		out = append(out, Violation{SceneID: sceneID, ObjectID: obj.ID, Field: field, Message: msg})
	}

	if obj.ID == "" {
		fail("id", "object id is required")
	} else if seen[obj.ID] {
		fail("id", "duplicate object id within scene")
	} else {
		seen[obj.ID] = true
	}

	x, y := obj.Position[0], obj.Position[1]
	if x < MinX || x > MaxX || y < MinY || y > MaxY {
		fail("position", fmt.Sprintf("position out of bounds: x in [%g,%g], y in [%g,%g], got [%g,%g]", MinX, MaxX, MinY, MaxY, x, y))
	}

	switch obj.Kind {
	case KindText, KindLatex:
		if obj.Content == "" {
			fail("content", obj.Kind+" object requires content")
		}
		if obj.FontSize != 0 && (obj.FontSize < MinFontSize || obj.FontSize > MaxFontSize) {
			fail("font_size", fmt.Sprintf("font_size must be in [%d,%d], got %d", MinFontSize, MaxFontSize, obj.FontSize))
		}
	case KindShape:
		out = append(out, validateShape(sceneID, obj)...)
	case KindImage:
		if obj.ImageURI == "" {
			fail("image_uri", "image object requires image_uri")
		}
	default:
		fail("type", fmt.Sprintf("unknown object type %q", obj.Kind))
	}

	if obj.FillOpacity < 0 || obj.FillOpacity > 1 {
		fail("fill_opacity", fmt.Sprintf("fill_opacity must be in [0,1], got %g", obj.FillOpacity))
	}

	for i, op := range obj.Operations {
		out = append(out, validateOperation(sceneID, obj.ID, i, op)...)
	}
	return out
}

func validateShape(sceneID string, obj Object) []Violation {
	var out []Violation
	fail := func(field, msg string) {
		out = append(out, Violation{SceneID: sceneID, ObjectID: obj.ID, Field: field, Message: msg})
	}

	switch obj.Shape {
	case ShapeCircle:
		if obj.Radius == nil {
			fail("radius", "circle requires radius")
		}
	case ShapeSquare:
		if obj.SideLength == nil {
			fail("side_length", "square requires side_length")
		}
	case ShapeRectangle:
		if obj.Width == nil || obj.Height == nil {
			fail("width", "rectangle requires width and height")
		}
	case ShapeTriangle:
		// size is implicit
	case "":
		fail("shape", "shape object requires shape")
	default:
		fail("shape", fmt.Sprintf("unknown shape %q", obj.Shape))
	}
	return out
}

func validateOperation(sceneID, objectID string, idx int, op Operation) []Violation {
	var out []Violation
	field := func(name string) string {
		return fmt.Sprintf("animations[%d].%s", idx, name)
	}
	fail := func(name, msg string) {
		out = append(out, Violation{SceneID: sceneID, ObjectID: objectID, Field: field(name), Message: msg})
	}

	if op.StartTime < 0 {
		fail("start_time", fmt.Sprintf("start_time must be >= 0, got %g", op.StartTime))
	}
	if op.Duration <= 0 {
		fail("duration", fmt.Sprintf("duration must be > 0, got %g", op.Duration))
	}

	switch op.Kind {
	case OpWrite, OpCreate, OpFadeIn, OpFadeOut:
		// no extra parameters
	case OpMoveTo:
		if op.TargetPosition == nil {
			fail("target_position", "move_to requires target_position")
		}
	case OpScale:
		if op.ScaleFactor == nil {
			fail("scale_factor", "scale requires scale_factor")
		}
	case OpRotate:
		if op.Angle == nil {
			fail("angle", "rotate requires angle")
		}
	default:
		fail("type", fmt.Sprintf("unknown animation type %q", op.Kind))
	}
	return out
}
