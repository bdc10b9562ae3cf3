// Package timeline compiles one scene's unordered, possibly-overlapping
// timed operations into a deterministic linear instruction stream for a
// rendering engine that executes sequentially and advances a single clock.
package timeline

import (
	"sort"

	"motif/internal/ir"
	"motif/internal/pkg/errors"
)

// Epsilon absorbs floating rounding when comparing clock positions. Gaps and
// trailing padding shorter than this are not worth an idle wait.
const Epsilon = 0.01

// Instruction opcodes.
const (
	OpConstruct = "construct"
	OpWait      = "wait"
	OpEffect    = "effect"
)

// Instruction is one step of a compiled scene. Construct steps create the
// object before the clock starts; wait steps advance the clock without
// visual change; effect steps run one timed operation.
type Instruction struct {
	Op       string
	ObjectID string

	// Effect fields. Kind is an ir operation kind; the pointer parameters
	// are resolved (non-nil) for the kinds that need them.
	Kind           string
	Duration       float64
	TargetPosition *[3]float64
	ScaleFactor    *float64
	Angle          *float64
}

// Program is the compiled artifact for one scene.
type Program struct {
	SceneID      string
	Instructions []Instruction

	// TotalDuration is the elapsed clock after the last instruction:
	// max(scene duration, latest operation end time).
	TotalDuration float64

	// Overrun is how far operations run past the declared scene duration.
	// The scene is allowed to run long; no instruction is ever clipped and
	// no negative wait is ever emitted.
	Overrun float64
}

// timed pairs an operation with its flattening position so the sort tie-break
// is object declaration order, then per-object operation order.
type timed struct {
	start    float64
	objectID string
	op       ir.Operation
}

// Compile turns a validated scene into an ordered instruction stream.
// Compiling the same scene twice yields identical programs. The scene must
// already have passed ir.Validate; a missing operation parameter here is a
// contract breach and comes back as an internal error.
func Compile(scene ir.Scene) (*Program, error) {
	p := &Program{SceneID: scene.SceneID}

	var ops []timed
	for _, obj := range scene.Objects {
		p.Instructions = append(p.Instructions, Instruction{Op: OpConstruct, ObjectID: obj.ID})
		for _, op := range obj.Operations {
			ops = append(ops, timed{start: op.StartTime, objectID: obj.ID, op: op})
		}
	}

	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].start < ops[j].start
	})

	clock := 0.0
	for _, t := range ops {
		if gap := t.start - clock; gap > Epsilon {
			p.Instructions = append(p.Instructions, Instruction{Op: OpWait, Duration: gap})
			clock = t.start
		}

		inst, err := effectInstruction(scene.SceneID, t.objectID, t.op)
		if err != nil {
			return nil, err
		}
		p.Instructions = append(p.Instructions, inst)
		clock += t.op.Duration
	}

	if remaining := scene.Duration - clock; remaining > Epsilon {
		p.Instructions = append(p.Instructions, Instruction{Op: OpWait, Duration: remaining})
		clock = scene.Duration
	} else if remaining < 0 {
		p.Overrun = -remaining
	}

	p.TotalDuration = clock
	return p, nil
}

func effectInstruction(sceneID, objectID string, op ir.Operation) (Instruction, error) {
	inst := Instruction{
		Op:       OpEffect,
		ObjectID: objectID,
		Kind:     op.Kind,
		Duration: op.Duration,
	}

	missing := func(param string) (Instruction, error) {
		return Instruction{}, errors.Internalf(
			"scene %s: operation %s on %s reached the compiler without %s",
			sceneID, op.Kind, objectID, param)
	}

	switch op.Kind {
	case ir.OpWrite, ir.OpCreate, ir.OpFadeIn, ir.OpFadeOut:
	case ir.OpMoveTo:
		if op.TargetPosition == nil {
			return missing("target_position")
		}
		inst.TargetPosition = op.TargetPosition
	case ir.OpScale:
		if op.ScaleFactor == nil {
			return missing("scale_factor")
		}
		inst.ScaleFactor = op.ScaleFactor
	case ir.OpRotate:
		if op.Angle == nil {
			return missing("angle")
		}
		inst.Angle = op.Angle
	default:
		return Instruction{}, errors.Internalf("scene %s: unknown operation kind %q", sceneID, op.Kind)
	}
	return inst, nil
}
