// Package recovery contains panics raised by goroutines and by
// caller-supplied callbacks so they cannot take down a receive loop.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Panic describes a recovered panic.
type Panic struct {
	Value any
	Stack []byte
}

// Error implements error so a recovered panic can travel as one.
func (p *Panic) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Call runs fn and returns the recovered panic, or nil if fn returned normally.
func Call(fn func()) (p *Panic) {
	defer func() {
		if r := recover(); r != nil {
			p = &Panic{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// RecoverWithLog recovers a panic in the calling goroutine and logs it.
// It must be deferred directly:
//
//	go func() {
//	    defer recovery.RecoverWithLog(logger, "receive-loop")
//	    ...
//	}()
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		logPanic(logger, name, &Panic{Value: r, Stack: debug.Stack()})
	}
}

// RecoverWithCallback is RecoverWithLog plus an optional callback that
// receives the recovered panic, e.g. to count it.
func RecoverWithCallback(logger *slog.Logger, name string, callback func(*Panic)) {
	if r := recover(); r != nil {
		p := &Panic{Value: r, Stack: debug.Stack()}
		logPanic(logger, name, p)
		if callback != nil {
			callback(p)
		}
	}
}

func logPanic(logger *slog.Logger, name string, p *Panic) {
	if logger == nil {
		return
	}
	logger.Error("panic recovered",
		"goroutine", name,
		"panic", fmt.Sprintf("%v", p.Value),
		"stack", string(p.Stack))
}
