package common

import "errors"

// ErrModulePaused is returned when a mutating operation is attempted against
// a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module is currently paused. The host
// wires in whatever switchboard it uses; a nil view means nothing is paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
