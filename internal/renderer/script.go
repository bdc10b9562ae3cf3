package renderer

import (
	"fmt"
	"strings"

	"motif/internal/ir"
	"motif/internal/pkg/errors"
	"motif/internal/timeline"
)

// GenerateScript materializes a compiled scene program as engine-native
// source text: one Python scene class the engine CLI can execute. The
// instruction stream maps one-to-one onto generated statements, so the
// engine's sequential clock reproduces the compiled timing exactly.
func GenerateScript(scene ir.Scene, program *timeline.Program, sceneIndex int, style string) (string, error) {
	preset := presetFor(style)
	background := preset.Background
	if background == "" {
		background = scene.BackgroundColor
	}
	if background == "" {
		background = "#1a1a2e"
	}

	objects := make(map[string]ir.Object, len(scene.Objects))
	for _, obj := range scene.Objects {
		objects[obj.ID] = obj
	}

	var b strings.Builder
	b.WriteString("from manim import *\n\n")
	fmt.Fprintf(&b, "class %s(Scene):\n", SceneClassName(sceneIndex))
	b.WriteString("    def construct(self):\n")
	fmt.Fprintf(&b, "        self.camera.background_color = %q\n", background)
	fmt.Fprintf(&b, "        Text.set_default(color=%q)\n", preset.Text)
	fmt.Fprintf(&b, "        MathTex.set_default(color=%q)\n", preset.Math)
	fmt.Fprintf(&b, "        VMobject.set_default(color=%q)\n\n", preset.Primary)

	for _, inst := range program.Instructions {
		switch inst.Op {
		case timeline.OpConstruct:
			obj, ok := objects[inst.ObjectID]
			if !ok {
				return "", errors.Internalf("program references unknown object %q in scene %s", inst.ObjectID, scene.SceneID)
			}
			fmt.Fprintf(&b, "        %s = %s\n", obj.ID, objectExpr(obj))
		case timeline.OpWait:
			fmt.Fprintf(&b, "        self.wait(%s)\n", num(inst.Duration))
		case timeline.OpEffect:
			stmt, err := effectStmt(inst)
			if err != nil {
				return "", err
			}
			b.WriteString("        " + stmt + "\n")
		default:
			return "", errors.Internalf("unknown instruction op %q in scene %s", inst.Op, scene.SceneID)
		}
	}

	return b.String(), nil
}

// SceneClassName is the generated class rendered for scene i.
func SceneClassName(sceneIndex int) string {
	return fmt.Sprintf("DynamicScene%d", sceneIndex)
}

func objectExpr(obj ir.Object) string {
	pos := fmt.Sprintf(".move_to([%s, %s, %s])", num(obj.Position[0]), num(obj.Position[1]), num(obj.Position[2]))

	switch obj.Kind {
	case ir.KindText:
		fontSize := obj.FontSize
		if fontSize == 0 {
			fontSize = 36
		}
		return fmt.Sprintf("Text(%q, font_size=%d, color=%q)%s", obj.Content, fontSize, color(obj), pos)
	case ir.KindLatex:
		content := obj.Content
		if content == "" {
			content = "x"
		}
		return fmt.Sprintf("MathTex(%q, color=%q)%s", content, color(obj), pos)
	case ir.KindImage:
		return fmt.Sprintf("ImageMobject(%q)%s", obj.ImageURI, pos)
	case ir.KindShape:
		switch obj.Shape {
		case ir.ShapeCircle:
			return fmt.Sprintf("Circle(radius=%s, color=%q, fill_opacity=%s)%s", num(deref(obj.Radius, 1.0)), color(obj), num(obj.FillOpacity), pos)
		case ir.ShapeSquare:
			return fmt.Sprintf("Square(side_length=%s, color=%q, fill_opacity=%s)%s", num(deref(obj.SideLength, 2.0)), color(obj), num(obj.FillOpacity), pos)
		case ir.ShapeRectangle:
			return fmt.Sprintf("Rectangle(width=%s, height=%s, color=%q, fill_opacity=%s)%s",
				num(deref(obj.Width, 2.0)), num(deref(obj.Height, 1.0)), color(obj), num(obj.FillOpacity), pos)
		case ir.ShapeTriangle:
			return fmt.Sprintf("Triangle(color=%q, fill_opacity=%s)%s", color(obj), num(obj.FillOpacity), pos)
		}
	}
	return fmt.Sprintf("Dot(color=%q)%s", color(obj), pos)
}

func effectStmt(inst timeline.Instruction) (string, error) {
	id := inst.ObjectID
	rt := num(inst.Duration)

	switch inst.Kind {
	case ir.OpWrite:
		return fmt.Sprintf("self.play(Write(%s), run_time=%s)", id, rt), nil
	case ir.OpCreate:
		return fmt.Sprintf("self.play(Create(%s), run_time=%s)", id, rt), nil
	case ir.OpFadeIn:
		return fmt.Sprintf("self.play(FadeIn(%s), run_time=%s)", id, rt), nil
	case ir.OpFadeOut:
		return fmt.Sprintf("self.play(FadeOut(%s), run_time=%s)", id, rt), nil
	case ir.OpMoveTo:
		p := inst.TargetPosition
		return fmt.Sprintf("self.play(%s.animate.move_to([%s, %s, %s]), run_time=%s)", id, num(p[0]), num(p[1]), num(p[2]), rt), nil
	case ir.OpScale:
		return fmt.Sprintf("self.play(%s.animate.scale(%s), run_time=%s)", id, num(*inst.ScaleFactor), rt), nil
	case ir.OpRotate:
		return fmt.Sprintf("self.play(Rotate(%s, angle=%s*DEGREES), run_time=%s)", id, num(*inst.Angle), rt), nil
	}
	return "", errors.Internalf("unknown effect kind %q for object %s", inst.Kind, id)
}

func color(obj ir.Object) string {
	if obj.Color == "" {
		return "#ffffff"
	}
	return obj.Color
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// num formats floats without exponent notation so the generated source is
// stable and readable (identical programs generate identical scripts).
func num(v float64) string {
	s := fmt.Sprintf("%g", v)
	if strings.ContainsAny(s, "eE") {
		s = fmt.Sprintf("%f", v)
	}
	return s
}
