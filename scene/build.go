package scene

import (
	"context"
	"fmt"
	"io"

	"github.com/physkit/rigid2d/collision"
	"github.com/physkit/rigid2d/common"
	"github.com/physkit/rigid2d/dynamics"
)

// Simulation is a world built from a scene, with its bodies in scene order.
type Simulation struct {
	World  *dynamics.World
	Bodies []*dynamics.Body
	Names  []string
	Joints []dynamics.Joint

	step   StepSpec
	byName map[string]*dynamics.Body
}

// Build creates the world, its bodies and joints.
func (s *Scene) Build() (*Simulation, error) {
	var opts []dynamics.Option
	for _, flag := range []struct {
		v   *bool
		opt func(bool) dynamics.Option
	}{
		{s.World.AllowSleep, dynamics.WithAllowSleep},
		{s.World.WarmStarting, dynamics.WithWarmStarting},
		{s.World.ContinuousPhysics, dynamics.WithContinuousPhysics},
		{s.World.SubStepping, dynamics.WithSubStepping},
		{s.World.AutoClearForces, dynamics.WithAutoClearForces},
	} {
		if flag.v != nil {
			opts = append(opts, flag.opt(*flag.v))
		}
	}

	sim := &Simulation{
		World:  dynamics.NewWorld(s.Gravity.Vec2(), opts...),
		step:   s.Step,
		byName: make(map[string]*dynamics.Body, len(s.Bodies)),
	}
	for i := range s.Bodies {
		spec := &s.Bodies[i]
		b, err := buildBody(sim.World, spec)
		if err != nil {
			return nil, fmt.Errorf("scene: body %q: %w", spec.Name, err)
		}
		sim.Bodies = append(sim.Bodies, b)
		sim.Names = append(sim.Names, spec.Name)
		sim.byName[spec.Name] = b
	}
	for i := range s.Joints {
		spec := &s.Joints[i]
		j, err := sim.buildJoint(spec)
		if err != nil {
			return nil, fmt.Errorf("scene: joint %d (%s): %w", i, spec.Type, err)
		}
		sim.Joints = append(sim.Joints, j)
	}

	dynamics.Logger().Debug("scene built",
		"bodies", len(sim.Bodies), "joints", len(sim.Joints), "contacts", sim.World.ContactCount())
	return sim, nil
}

func parseBodyType(s string) (dynamics.BodyType, error) {
	switch s {
	case "", "static":
		return dynamics.StaticBody, nil
	case "kinematic":
		return dynamics.KinematicBody, nil
	case "dynamic":
		return dynamics.DynamicBody, nil
	}
	return 0, fmt.Errorf("unknown body type %q", s)
}

func buildBody(w *dynamics.World, spec *BodySpec) (*dynamics.Body, error) {
	typ, err := parseBodyType(spec.Type)
	if err != nil {
		return nil, err
	}
	def := dynamics.DefaultBodyDef()
	def.Type = typ
	def.Position = spec.Position.Vec2()
	def.Angle = spec.Angle
	def.LinearVelocity = spec.LinearVelocity.Vec2()
	def.AngularVelocity = spec.AngularVelocity
	def.LinearDamping = spec.LinearDamping
	def.AngularDamping = spec.AngularDamping
	def.FixedRotation = spec.FixedRotation
	def.Bullet = spec.Bullet
	if spec.GravityScale != nil {
		def.GravityScale = *spec.GravityScale
	}
	if spec.AllowSleep != nil {
		def.AllowSleep = *spec.AllowSleep
	}
	if spec.Awake != nil {
		def.Awake = *spec.Awake
	}
	if spec.Active != nil {
		def.Active = *spec.Active
	}
	def.UserData = spec.Name

	b, err := w.CreateBody(&def)
	if err != nil {
		return nil, err
	}
	for i := range spec.Fixtures {
		if err := buildFixture(b, &spec.Fixtures[i]); err != nil {
			return nil, fmt.Errorf("fixture %d: %w", i, err)
		}
	}
	return b, nil
}

func buildFixture(b *dynamics.Body, spec *FixtureSpec) error {
	shape, err := spec.Shape.build()
	if err != nil {
		return err
	}
	def := dynamics.DefaultFixtureDef(shape)
	def.Density = spec.Density
	def.Restitution = spec.Restitution
	def.IsSensor = spec.Sensor
	if spec.Friction != nil {
		def.Friction = *spec.Friction
	}
	if f := spec.Filter; f != nil {
		def.Filter.CategoryBits = f.Category
		if def.Filter.CategoryBits == 0 {
			def.Filter.CategoryBits = 0x0001
		}
		if f.Mask != nil {
			def.Filter.MaskBits = *f.Mask
		}
		def.Filter.GroupIndex = f.Group
	}
	_, err = b.CreateFixture(&def)
	return err
}

func points(ps []Point) []common.Vec2 {
	vs := make([]common.Vec2, len(ps))
	for i, p := range ps {
		vs[i] = p.Vec2()
	}
	return vs
}

func (s *ShapeSpec) build() (collision.Shape, error) {
	switch s.Type {
	case "circle":
		if s.Radius <= 0 {
			return nil, fmt.Errorf("circle radius %v", s.Radius)
		}
		return collision.NewCircle(s.Center.Vec2(), s.Radius), nil
	case "box":
		if s.HalfWidth <= 0 || s.HalfHeight <= 0 {
			return nil, fmt.Errorf("box half extents %v x %v", s.HalfWidth, s.HalfHeight)
		}
		if s.Center == (Point{}) && s.Angle == 0 {
			return collision.NewBox(s.HalfWidth, s.HalfHeight), nil
		}
		return collision.NewOrientedBox(s.HalfWidth, s.HalfHeight, s.Center.Vec2(), s.Angle), nil
	case "polygon":
		return collision.NewPolygon(points(s.Vertices))
	case "edge":
		if len(s.Vertices) != 2 {
			return nil, fmt.Errorf("edge needs 2 vertices, got %d", len(s.Vertices))
		}
		return collision.NewEdge(s.Vertices[0].Vec2(), s.Vertices[1].Vec2()), nil
	case "chain":
		return collision.NewChain(points(s.Vertices))
	case "loop":
		return collision.NewLoop(points(s.Vertices))
	}
	return nil, fmt.Errorf("unknown shape type %q", s.Type)
}

func (sim *Simulation) buildJoint(spec *JointSpec) (dynamics.Joint, error) {
	bA, bB := sim.byName[spec.BodyA], sim.byName[spec.BodyB]
	base := dynamics.JointDef{BodyA: bA, BodyB: bB, CollideConnected: spec.CollideConnected}

	var def dynamics.JointDefinition
	switch spec.Type {
	case "distance":
		d := dynamics.DefaultDistanceJointDef()
		d.Initialize(bA, bB, spec.AnchorA.Vec2(), spec.AnchorB.Vec2())
		d.CollideConnected = spec.CollideConnected
		d.FrequencyHz = spec.FrequencyHz
		if spec.DampingRatio != nil {
			d.DampingRatio = *spec.DampingRatio
		}
		def = &d
	case "revolute":
		d := &dynamics.RevoluteJointDef{
			JointDef:       base,
			EnableLimit:    spec.EnableLimit,
			LowerAngle:     spec.LowerAngle,
			UpperAngle:     spec.UpperAngle,
			EnableMotor:    spec.EnableMotor,
			MotorSpeed:     spec.MotorSpeed,
			MaxMotorTorque: spec.MaxMotorTorque,
		}
		d.Initialize(bA, bB, spec.Anchor.Vec2())
		def = d
	case "prismatic":
		d := &dynamics.PrismaticJointDef{
			JointDef:         base,
			EnableLimit:      spec.EnableLimit,
			LowerTranslation: spec.LowerTranslation,
			UpperTranslation: spec.UpperTranslation,
			EnableMotor:      spec.EnableMotor,
			MotorSpeed:       spec.MotorSpeed,
			MaxMotorForce:    spec.MaxMotorForce,
		}
		d.Initialize(bA, bB, spec.Anchor.Vec2(), spec.axis())
		def = d
	case "wheel":
		d := dynamics.DefaultWheelJointDef()
		d.JointDef = base
		d.EnableMotor = spec.EnableMotor
		d.MotorSpeed = spec.MotorSpeed
		d.MaxMotorTorque = spec.MaxMotorTorque
		d.FrequencyHz = spec.FrequencyHz
		if spec.DampingRatio != nil {
			d.DampingRatio = *spec.DampingRatio
		}
		d.Initialize(bA, bB, spec.Anchor.Vec2(), spec.axis())
		def = &d
	case "pulley":
		d := dynamics.DefaultPulleyJointDef()
		ratio := 1.0
		if spec.Ratio != nil {
			ratio = *spec.Ratio
		}
		d.Initialize(bA, bB, spec.GroundAnchorA.Vec2(), spec.GroundAnchorB.Vec2(),
			spec.AnchorA.Vec2(), spec.AnchorB.Vec2(), ratio)
		d.CollideConnected = spec.CollideConnected
		def = &d
	case "motor":
		d := dynamics.DefaultMotorJointDef()
		d.JointDef = base
		d.Initialize(bA, bB)
		d.MaxForce = spec.MaxForce
		d.MaxTorque = spec.MaxTorque
		if spec.LinearOffset != nil {
			d.LinearOffset = spec.LinearOffset.Vec2()
		}
		if spec.AngularOffset != nil {
			d.AngularOffset = *spec.AngularOffset
		}
		if spec.CorrectionFactor != nil {
			d.CorrectionFactor = *spec.CorrectionFactor
		}
		def = &d
	case "rope":
		d := dynamics.DefaultRopeJointDef()
		d.JointDef = base
		d.MaxLength = spec.MaxLength
		d.Initialize(bA, bB, spec.AnchorA.Vec2(), spec.AnchorB.Vec2())
		def = &d
	case "gear":
		d := dynamics.DefaultGearJointDef()
		d.CollideConnected = spec.CollideConnected
		ratio := 1.0
		if spec.Ratio != nil {
			ratio = *spec.Ratio
		}
		d.Initialize(sim.Joints[spec.Joint1], sim.Joints[spec.Joint2], ratio)
		def = &d
	case "weld":
		d := &dynamics.WeldJointDef{JointDef: base, FrequencyHz: spec.FrequencyHz}
		d.Initialize(bA, bB, spec.Anchor.Vec2())
		if spec.DampingRatio != nil {
			d.DampingRatio = *spec.DampingRatio
		}
		def = d
	case "friction":
		d := &dynamics.FrictionJointDef{JointDef: base, MaxForce: spec.MaxForce, MaxTorque: spec.MaxTorque}
		d.Initialize(bA, bB, spec.Anchor.Vec2())
		def = d
	case "mouse":
		d := dynamics.DefaultMouseJointDef()
		d.JointDef = base
		d.Target = spec.Target.Vec2()
		d.MaxForce = spec.MaxForce
		if spec.FrequencyHz != 0 {
			d.FrequencyHz = spec.FrequencyHz
		}
		if spec.DampingRatio != nil {
			d.DampingRatio = *spec.DampingRatio
		}
		def = &d
	default:
		return nil, fmt.Errorf("unknown joint type %q", spec.Type)
	}
	return sim.World.CreateJoint(def)
}

func (s *JointSpec) axis() common.Vec2 {
	if s.Axis == (Point{}) {
		return common.MakeVec2(1, 0)
	}
	return s.Axis.Vec2()
}

// Body returns the body with the given scene name, or nil.
func (sim *Simulation) Body(name string) *dynamics.Body { return sim.byName[name] }

// StepCount is the number of steps the scene asks for.
func (sim *Simulation) StepCount() int { return sim.step.Count }

// Step advances the world once with the scene's step settings.
func (sim *Simulation) Step() error {
	return sim.World.Step(sim.step.Dt, sim.step.VelocityIterations, sim.step.PositionIterations)
}

// WriteState writes one trace line per body for step i.
func (sim *Simulation) WriteState(w io.Writer, i int) error {
	for k, b := range sim.Bodies {
		p := b.Position()
		if _, err := fmt.Fprintf(w, "%v(%s): %4.3f %4.3f %4.3f\n", i, sim.Names[k], p.X, p.Y, b.Angle()); err != nil {
			return err
		}
	}
	return nil
}

// Trace steps the world n times and writes the body states after every
// step. A negative n uses the scene's step count. It stops early when ctx
// is done.
func (sim *Simulation) Trace(ctx context.Context, w io.Writer, n int) error {
	if n < 0 {
		n = sim.step.Count
	}
	for i := range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sim.Step(); err != nil {
			return fmt.Errorf("scene: step %d: %w", i, err)
		}
		if err := sim.WriteState(w, i); err != nil {
			return fmt.Errorf("scene: write trace: %w", err)
		}
	}
	return nil
}
