// Package dynamics simulates rigid bodies. A World owns bodies, their
// fixtures and the joints between them; World.Step advances everything by
// a fixed time step, resolving contacts with sequential impulses and
// sub-stepping fast bodies with continuous collision.
//
// A World is not safe for concurrent use. Topology changes (creating or
// destroying bodies, fixtures and joints, teleporting bodies, changing mass)
// are rejected with ErrLocked while a step is running, which includes every
// listener callback the step makes.
package dynamics
