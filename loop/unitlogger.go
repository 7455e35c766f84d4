package loop

import "log"

// A LogHook is a hook that records information from a run.
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks.
type LogHookBase struct {
	*log.Logger
}

// UnitLogger is a hook that prints every unit of work the loop executes,
// with its kind, ID, and virtual time.
type UnitLogger struct {
	LogHookBase
}

// NewUnitLogger returns a UnitLogger that writes to the given logger.
func NewUnitLogger(logger *log.Logger) *UnitLogger {
	h := new(UnitLogger)
	h.Logger = logger
	return h
}

// Func writes the unit information into the logger.
func (h *UnitLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeUnit {
		return
	}

	info, ok := ctx.Item.(UnitInfo)
	if !ok {
		return
	}

	h.Printf("%.3f, %s %s", info.Time, info.Kind, info.ID)
}
