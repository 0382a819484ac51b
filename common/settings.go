package common

import "math"

// Global tuning constants based on meters-kilograms-seconds (MKS) units.

const (
	MaxFloat = math.MaxFloat64

	// Epsilon is the single precision machine epsilon. Tolerances in the
	// solver are expressed relative to it, not to the float64 epsilon.
	Epsilon = 1.1920928955078125e-7

	Pi = math.Pi
)

// Collision

const (
	// MaxManifoldPoints is the maximum number of contact points between two
	// convex shapes.
	MaxManifoldPoints = 2

	// MaxPolygonVertices is the maximum number of vertices on a convex polygon.
	MaxPolygonVertices = 8

	// AABBExtension fattens AABBs in the dynamic tree so proxies can move a
	// small amount without triggering a tree adjustment. Meters.
	AABBExtension = 0.1

	// AABBMultiplier predicts the future position of a proxy from its
	// displacement. Dimensionless.
	AABBMultiplier = 2.0

	// LinearSlop is a collision and constraint tolerance: numerically
	// significant, visually insignificant.
	LinearSlop = 0.005

	AngularSlop = 2.0 / 180.0 * Pi

	// PolygonRadius is the skin of polygons and edges.
	PolygonRadius = 2.0 * LinearSlop

	// MaxSubSteps caps the TOI events resolved per contact in one step.
	MaxSubSteps = 8
)

// Dynamics

const (
	// MaxTOIContacts caps the contacts gathered around a TOI event.
	MaxTOIContacts = 32

	// VelocityThreshold: relative normal speeds below it are inelastic.
	VelocityThreshold = 1.0

	MaxLinearCorrection  = 0.2
	MaxAngularCorrection = 8.0 / 180.0 * Pi

	// MaxTranslation bounds the displacement of a body in one step.
	MaxTranslation        = 2.0
	MaxTranslationSquared = MaxTranslation * MaxTranslation

	// MaxRotation bounds the rotation of a body in one step.
	MaxRotation        = 0.5 * Pi
	MaxRotationSquared = MaxRotation * MaxRotation

	// Baumgarte controls how fast overlap is resolved.
	Baumgarte    = 0.2
	TOIBaumgarte = 0.75
)

// Sleep

const (
	TimeToSleep           = 0.5
	LinearSleepTolerance  = 0.01
	AngularSleepTolerance = 2.0 / 180.0 * Pi
)

// Assert panics when an internal invariant is broken. It is never used to
// report misuse of the public API; those paths return errors.
func Assert(cond bool) {
	if !cond {
		panic("rigid2d: internal invariant violated")
	}
}
