package emit

import "context"

// NullEmitter discards every event. It is the default Emitter for
// components that don't configure one.
type NullEmitter struct{}

// Null returns the shared no-op Emitter.
func Null() Emitter { return NullEmitter{} }

func (NullEmitter) Emit(Event) {}

func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (NullEmitter) Flush(context.Context) error { return nil }
