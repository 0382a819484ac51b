package dynamics

import "github.com/physkit/rigid2d/collision"

// Option configures a World at construction.
type Option func(*World)

// WithAllowSleep enables putting resting islands to sleep. Default true.
func WithAllowSleep(allow bool) Option {
	return func(w *World) { w.allowSleep = allow }
}

// WithWarmStarting seeds each step's solver with the previous impulses.
// Default true.
func WithWarmStarting(enabled bool) Option {
	return func(w *World) { w.warmStarting = enabled }
}

// WithContinuousPhysics enables time of impact sub-stepping. Default true.
func WithContinuousPhysics(enabled bool) Option {
	return func(w *World) { w.continuousPhysics = enabled }
}

// WithSubStepping resolves a single TOI event per step, for debugging.
// Default false.
func WithSubStepping(enabled bool) Option {
	return func(w *World) { w.subStepping = enabled }
}

// WithAutoClearForces clears forces after every step. Default true.
func WithAutoClearForces(enabled bool) Option {
	return func(w *World) { w.autoClearForces = enabled }
}

// WithBroadPhase replaces the default dynamic tree broad-phase.
func WithBroadPhase(bp collision.BroadPhase) Option {
	return func(w *World) { w.contactManager.broadPhase = bp }
}
