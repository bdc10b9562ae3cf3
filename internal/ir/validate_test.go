package ir

import (
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }

func validIR() *IR {
	return &IR{
		Version: "1.0",
		Scenes: []Scene{
			{
				SceneID:  "intro",
				Duration: 5.0,
				Objects: []Object{
					{
						ID:       "title",
						Kind:     KindText,
						Content:  "Hello",
						Position: [3]float64{0, 1, 0},
						Operations: []Operation{
							{Kind: OpWrite, StartTime: 0, Duration: 1.5},
						},
					},
					{
						ID:     "circle1",
						Kind:   KindShape,
						Shape:  ShapeCircle,
						Radius: f(1.0),
						Operations: []Operation{
							{Kind: OpCreate, StartTime: 0.5, Duration: 1.0},
							{Kind: OpMoveTo, StartTime: 2.0, Duration: 1.0, TargetPosition: &[3]float64{3, 0, 0}},
						},
					},
				},
			},
		},
	}
}

func TestValidateOK(t *testing.T) {
	if vs := Validate(validIR()); len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", vs)
	}
}

func TestValidateNil(t *testing.T) {
	vs := Validate(nil)
	if len(vs) != 1 || vs[0].Field != "ir" {
		t.Fatalf("expected single ir violation, got %v", vs)
	}
}

func TestValidateSceneBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IR)
		field  string
	}{
		{
			name:   "no scenes",
			mutate: func(in *IR) { in.Scenes = nil },
			field:  "scenes",
		},
		{
			name: "too many scenes",
			mutate: func(in *IR) {
				s := in.Scenes[0]
				in.Scenes = nil
				for i := 0; i < MaxScenes+1; i++ {
					c := s
					c.SceneID = strings.Repeat("s", i+1)
					in.Scenes = append(in.Scenes, c)
				}
			},
			field: "scenes",
		},
		{
			name:   "zero duration",
			mutate: func(in *IR) { in.Scenes[0].Duration = 0 },
			field:  "duration",
		},
		{
			name:   "duration over limit",
			mutate: func(in *IR) { in.Scenes[0].Duration = 10.5 },
			field:  "duration",
		},
		{
			name: "too many objects",
			mutate: func(in *IR) {
				o := in.Scenes[0].Objects[0]
				in.Scenes[0].Objects = nil
				for i := 0; i < MaxObjectsPerScene+1; i++ {
					c := o
					c.ID = strings.Repeat("o", i+1)
					in.Scenes[0].Objects = append(in.Scenes[0].Objects, c)
				}
			},
			field: "objects",
		},
		{
			name:   "duplicate scene id",
			mutate: func(in *IR) { in.Scenes = append(in.Scenes, Scene{SceneID: "intro", Duration: 1}) },
			field:  "scene_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validIR()
			tt.mutate(in)
			vs := Validate(in)
			if len(vs) == 0 {
				t.Fatal("expected at least one violation")
			}
			found := false
			for _, v := range vs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a violation on field %q, got %v", tt.field, vs)
			}
		})
	}
}

func TestValidatePositionOutOfBounds(t *testing.T) {
	in := validIR()
	in.Scenes[0].Objects[0].Position = [3]float64{8, 0, 0}

	vs := Validate(in)
	if len(vs) != 1 {
		t.Fatalf("expected exactly one violation, got %v", vs)
	}
	v := vs[0]
	if v.Field != "position" || v.ObjectID != "title" || v.SceneID != "intro" {
		t.Errorf("unexpected violation: %+v", v)
	}
	if !strings.Contains(v.Message, "out of bounds") {
		t.Errorf("expected bounds message, got %q", v.Message)
	}
}

func TestValidateOperationParams(t *testing.T) {
	tests := []struct {
		name  string
		op    Operation
		field string
	}{
		{"negative start", Operation{Kind: OpCreate, StartTime: -1, Duration: 1}, "animations[0].start_time"},
		{"zero duration", Operation{Kind: OpCreate, StartTime: 0, Duration: 0}, "animations[0].duration"},
		{"move_to without target", Operation{Kind: OpMoveTo, StartTime: 0, Duration: 1}, "animations[0].target_position"},
		{"scale without factor", Operation{Kind: OpScale, StartTime: 0, Duration: 1}, "animations[0].scale_factor"},
		{"rotate without angle", Operation{Kind: OpRotate, StartTime: 0, Duration: 1}, "animations[0].angle"},
		{"unknown kind", Operation{Kind: "blink", StartTime: 0, Duration: 1}, "animations[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validIR()
			in.Scenes[0].Objects[0].Operations = []Operation{tt.op}
			vs := Validate(in)
			if len(vs) == 0 {
				t.Fatal("expected a violation")
			}
			if vs[0].Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, vs[0].Field)
			}
		})
	}
}

func TestValidateKindRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Object)
		field  string
	}{
		{"text without content", func(o *Object) { o.Kind = KindText; o.Content = "" }, "content"},
		{"circle without radius", func(o *Object) { o.Kind = KindShape; o.Shape = ShapeCircle; o.Radius = nil }, "radius"},
		{"square without side", func(o *Object) { o.Kind = KindShape; o.Shape = ShapeSquare }, "side_length"},
		{"rectangle without dims", func(o *Object) { o.Kind = KindShape; o.Shape = ShapeRectangle }, "width"},
		{"shape without shape", func(o *Object) { o.Kind = KindShape; o.Shape = "" }, "shape"},
		{"image without uri", func(o *Object) { o.Kind = KindImage }, "image_uri"},
		{"font size out of range", func(o *Object) { o.Kind = KindText; o.Content = "x"; o.FontSize = 200 }, "font_size"},
		{"opacity out of range", func(o *Object) { o.FillOpacity = 1.5 }, "fill_opacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validIR()
			obj := &in.Scenes[0].Objects[0]
			obj.Kind = KindText
			obj.Content = "x"
			tt.mutate(obj)
			vs := Validate(in)
			found := false
			for _, v := range vs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected violation on %q, got %v", tt.field, vs)
			}
		})
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	in := validIR()
	in.Scenes[0].Duration = 0                                 // 1
	in.Scenes[0].Objects[0].Position = [3]float64{0, -9, 0}   // 2
	in.Scenes[0].Objects[1].Radius = nil                      // 3
	in.Scenes[0].Objects[1].Operations[1].TargetPosition = nil // 4

	vs := Validate(in)
	if len(vs) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(vs), vs)
	}
}

func TestCloneIsDeep(t *testing.T) {
	in := validIR()
	cp := in.Clone()

	cp.Scenes[0].Objects[1].Operations[1].TargetPosition[0] = 99
	*cp.Scenes[0].Objects[1].Radius = 42
	cp.Scenes[0].SceneID = "changed"

	if in.Scenes[0].Objects[1].Operations[1].TargetPosition[0] == 99 {
		t.Error("target position shared between clone and original")
	}
	if *in.Scenes[0].Objects[1].Radius == 42 {
		t.Error("radius shared between clone and original")
	}
	if in.Scenes[0].SceneID != "intro" {
		t.Error("scene id mutated through clone")
	}
}

func TestTotalDuration(t *testing.T) {
	in := validIR()
	in.Scenes = append(in.Scenes, Scene{SceneID: "outro", Duration: 2.5})
	if got := in.TotalDuration(); got != 7.5 {
		t.Errorf("expected 7.5, got %g", got)
	}
}
