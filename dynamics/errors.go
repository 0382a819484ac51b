package dynamics

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned by mutating calls made while the world is
	// stepping, typically from inside a listener callback.
	ErrLocked = errors.New("dynamics: world is locked")

	// ErrInvalidDef is returned when a definition or argument is out of range.
	ErrInvalidDef = errors.New("dynamics: invalid definition")
)

func invalidDef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDef, fmt.Sprintf(format, args...))
}
