package dynamics

import "github.com/physkit/rigid2d/common"

// Profile holds the wall-clock cost of the last step in milliseconds.
type Profile struct {
	Step          float64
	Collide       float64
	Solve         float64
	SolveInit     float64
	SolveVelocity float64
	SolvePosition float64
	BroadPhase    float64
	SolveTOI      float64
}

type timeStep struct {
	dt                 float64
	invDt              float64 // 0 if dt == 0
	dtRatio            float64 // dt * previous invDt
	velocityIterations int
	positionIterations int
	warmStarting       bool
}

type position struct {
	c common.Vec2
	a float64
}

type velocity struct {
	v common.Vec2
	w float64
}

// solverData is what constraints see of the island being solved.
type solverData struct {
	step       timeStep
	positions  []position
	velocities []velocity
}
