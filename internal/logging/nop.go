package logging

import "context"

// NopLogger discards everything. Handy for tests and as a default before the
// real logger is wired.
type NopLogger struct{}

func NewNop() *NopLogger { return &NopLogger{} }

func (*NopLogger) Info(context.Context, string, ...any)  {}
func (*NopLogger) Warn(context.Context, string, ...any)  {}
func (*NopLogger) Error(context.Context, string, ...any) {}

func (n *NopLogger) With(...any) Logger { return n }
