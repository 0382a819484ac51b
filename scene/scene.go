// Package scene describes worlds in YAML, builds them and traces their
// bodies step by step.
//
// A scene file looks like this:
//
//	gravity: [0, -10]
//	step: {dt: 0.0166667, velocity_iterations: 8, position_iterations: 3, count: 120}
//	bodies:
//	  - name: ground
//	    fixtures:
//	      - shape: {type: edge, vertices: [[-20, 0], [20, 0]]}
//	  - name: box
//	    type: dynamic
//	    position: [0, 4]
//	    fixtures:
//	      - shape: {type: box, half_width: 0.5, half_height: 0.5}
//	        density: 1
//	joints:
//	  - {type: revolute, body_a: ground, body_b: box, anchor: [0, 5]}
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/physkit/rigid2d/common"
)

// Step defaults used when a scene leaves them out.
const (
	DefaultDt                 = 1.0 / 60.0
	DefaultVelocityIterations = 8
	DefaultPositionIterations = 3
	DefaultStepCount          = 60
)

// Point is a 2D point written as a two element sequence.
type Point [2]float64

func (p *Point) UnmarshalYAML(node *yaml.Node) error {
	var xs []float64
	if err := node.Decode(&xs); err != nil {
		return err
	}
	if len(xs) != 2 {
		return fmt.Errorf("line %d: point needs 2 coordinates, got %d", node.Line, len(xs))
	}
	p[0], p[1] = xs[0], xs[1]
	return nil
}

// DefaultStepSpec returns the settings used for missing step keys.
func DefaultStepSpec() StepSpec {
	return StepSpec{
		Dt:                 DefaultDt,
		VelocityIterations: DefaultVelocityIterations,
		PositionIterations: DefaultPositionIterations,
		Count:              DefaultStepCount,
	}
}

func (p Point) Vec2() common.Vec2 { return common.MakeVec2(p[0], p[1]) }

type Scene struct {
	Gravity Point       `yaml:"gravity"`
	Step    StepSpec    `yaml:"step"`
	World   WorldSpec   `yaml:"world"`
	Bodies  []BodySpec  `yaml:"bodies"`
	Joints  []JointSpec `yaml:"joints"`
}

// StepSpec holds the step settings. Keys left out of a scene keep the
// defaults; an explicit zero is kept, so "count: 0" builds the world without
// stepping it and "dt: 0" only updates contacts.
type StepSpec struct {
	Dt                 float64 `yaml:"dt"`
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
	Count              int     `yaml:"count"`
}

// WorldSpec holds the world flags. Unset flags keep the engine defaults.
type WorldSpec struct {
	AllowSleep        *bool `yaml:"allow_sleep"`
	WarmStarting      *bool `yaml:"warm_starting"`
	ContinuousPhysics *bool `yaml:"continuous_physics"`
	SubStepping       *bool `yaml:"sub_stepping"`
	AutoClearForces   *bool `yaml:"auto_clear_forces"`
}

type BodySpec struct {
	Name            string        `yaml:"name"`
	Type            string        `yaml:"type"`
	Position        Point         `yaml:"position"`
	Angle           float64       `yaml:"angle"`
	LinearVelocity  Point         `yaml:"linear_velocity"`
	AngularVelocity float64       `yaml:"angular_velocity"`
	LinearDamping   float64       `yaml:"linear_damping"`
	AngularDamping  float64       `yaml:"angular_damping"`
	GravityScale    *float64      `yaml:"gravity_scale"`
	FixedRotation   bool          `yaml:"fixed_rotation"`
	Bullet          bool          `yaml:"bullet"`
	AllowSleep      *bool         `yaml:"allow_sleep"`
	Awake           *bool         `yaml:"awake"`
	Active          *bool         `yaml:"active"`
	Fixtures        []FixtureSpec `yaml:"fixtures"`
}

type FixtureSpec struct {
	Shape       ShapeSpec   `yaml:"shape"`
	Density     float64     `yaml:"density"`
	Friction    *float64    `yaml:"friction"`
	Restitution float64     `yaml:"restitution"`
	Sensor      bool        `yaml:"sensor"`
	Filter      *FilterSpec `yaml:"filter"`
}

// ShapeSpec is one of circle, box, polygon, edge, chain or loop. Only the
// fields of the chosen type are read.
type ShapeSpec struct {
	Type       string  `yaml:"type"`
	Radius     float64 `yaml:"radius"`
	Center     Point   `yaml:"center"`
	HalfWidth  float64 `yaml:"half_width"`
	HalfHeight float64 `yaml:"half_height"`
	Angle      float64 `yaml:"angle"`
	Vertices   []Point `yaml:"vertices"`
}

type FilterSpec struct {
	Category uint16  `yaml:"category"`
	Mask     *uint16 `yaml:"mask"`
	Group    int16   `yaml:"group"`
}

// JointSpec is one of distance, revolute, prismatic, wheel, weld, friction,
// mouse, pulley, motor, rope or gear. Bodies are referenced by name; a gear
// references two earlier revolute or prismatic joints by index instead.
type JointSpec struct {
	Type             string `yaml:"type"`
	BodyA            string `yaml:"body_a"`
	BodyB            string `yaml:"body_b"`
	CollideConnected bool   `yaml:"collide_connected"`

	// Anchor is the world anchor of revolute, prismatic, wheel, weld and
	// friction joints.
	Anchor Point `yaml:"anchor"`
	// AnchorA and AnchorB are the world anchors of distance, pulley and rope
	// joints.
	AnchorA Point `yaml:"anchor_a"`
	AnchorB Point `yaml:"anchor_b"`
	Target  Point `yaml:"target"`
	// Axis is the world axis of prismatic and wheel joints, (1, 0) if unset.
	Axis Point `yaml:"axis"`

	FrequencyHz  float64  `yaml:"frequency_hz"`
	DampingRatio *float64 `yaml:"damping_ratio"`

	EnableLimit      bool    `yaml:"enable_limit"`
	LowerAngle       float64 `yaml:"lower_angle"`
	UpperAngle       float64 `yaml:"upper_angle"`
	LowerTranslation float64 `yaml:"lower_translation"`
	UpperTranslation float64 `yaml:"upper_translation"`
	EnableMotor      bool    `yaml:"enable_motor"`
	MotorSpeed       float64 `yaml:"motor_speed"`
	MaxMotorTorque   float64 `yaml:"max_motor_torque"`
	MaxMotorForce    float64 `yaml:"max_motor_force"`

	MaxForce  float64 `yaml:"max_force"`
	MaxTorque float64 `yaml:"max_torque"`

	GroundAnchorA Point    `yaml:"ground_anchor_a"`
	GroundAnchorB Point    `yaml:"ground_anchor_b"`
	Ratio         *float64 `yaml:"ratio"`

	MaxLength float64 `yaml:"max_length"`

	// Unset motor offsets keep the bodies' current placement.
	LinearOffset     *Point   `yaml:"linear_offset"`
	AngularOffset    *float64 `yaml:"angular_offset"`
	CorrectionFactor *float64 `yaml:"correction_factor"`

	Joint1 int `yaml:"joint1"`
	Joint2 int `yaml:"joint2"`
}

// Parse decodes a scene. Missing step keys take the defaults. Unknown keys are errors.
func Parse(data []byte) (*Scene, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// Decoding leaves missing keys alone, so the defaults go in first.
	s := Scene{Step: DefaultStepSpec()}
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scene: unmarshal: %w", err)
	}
	s.nameBodies()
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a scene file.
func Load(filename string) (*Scene, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("scene: load %s: %w", filename, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, filename)
	}
	return s, nil
}

func (s *Scene) nameBodies() {
	for i := range s.Bodies {
		if s.Bodies[i].Name == "" {
			s.Bodies[i].Name = fmt.Sprintf("%02d", i)
		}
	}
}

func (s *Scene) validate() error {
	switch {
	case s.Step.Dt < 0:
		return fmt.Errorf("scene: step: negative dt %v", s.Step.Dt)
	case s.Step.VelocityIterations < 0 || s.Step.PositionIterations < 0:
		return fmt.Errorf("scene: step: negative iteration count")
	case s.Step.Count < 0:
		return fmt.Errorf("scene: step: negative count %d", s.Step.Count)
	}

	seen := make(map[string]bool, len(s.Bodies))
	for _, b := range s.Bodies {
		if seen[b.Name] {
			return fmt.Errorf("scene: body %q: duplicate name", b.Name)
		}
		seen[b.Name] = true
	}
	for i, j := range s.Joints {
		if j.Type == "gear" {
			if j.Joint1 < 0 || j.Joint1 >= i || j.Joint2 < 0 || j.Joint2 >= i || j.Joint1 == j.Joint2 {
				return fmt.Errorf("scene: joint %d (gear): joints %d and %d must be two distinct earlier joints", i, j.Joint1, j.Joint2)
			}
			continue
		}
		for _, name := range []string{j.BodyA, j.BodyB} {
			if !seen[name] {
				return fmt.Errorf("scene: joint %d (%s): unknown body %q", i, j.Type, name)
			}
		}
	}
	return nil
}
