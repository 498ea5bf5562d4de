package common

import "errors"

// ErrModulePaused is returned by engine entry points while the module's pause
// flag is raised by governance or a sentinel.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause flags maintained in protocol state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view means no
// pause wiring and the guard passes.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
