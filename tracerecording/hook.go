package tracerecording

import (
	"sync/atomic"

	"github.com/schedlab/vloop/loop"
)

// A TraceHook records every unit of work an event loop executes. Attach it
// to a loop with AcceptHook.
type TraceHook struct {
	recorder TraceRecorder
	nextSeq  int64
}

// NewTraceHook creates a TraceHook writing to recorder.
func NewTraceHook(recorder TraceRecorder) *TraceHook {
	return &TraceHook{recorder: recorder}
}

// Func records a finished unit of work, including its failure if it had one.
func (h *TraceHook) Func(ctx loop.HookCtx) {
	if ctx.Pos != loop.HookPosAfterUnit {
		return
	}

	info, ok := ctx.Item.(loop.UnitInfo)
	if !ok {
		return
	}

	seq := int(atomic.AddInt64(&h.nextSeq, 1))

	h.recorder.RecordUnit(UnitEntry{
		Seq:    seq,
		Kind:   info.Kind.String(),
		UnitID: info.ID,
		TimeMs: float64(info.Time),
		Failed: info.Err != nil,
	})

	if info.Err != nil {
		h.recorder.RecordError(ErrorEntry{
			Seq:     seq,
			Kind:    info.Kind.String(),
			UnitID:  info.ID,
			TimeMs:  float64(info.Time),
			Message: info.Err.Error(),
		})
	}
}
