// Package invariant provides contract assertions for the HyperFixi pipeline.
//
// Parsing and compilation are pure transformations, so a violated contract is
// always a programming error, never bad user input: bad input surfaces as a
// ParseError or CompileError, while these helpers panic. Use Precondition for
// caller contracts, Postcondition for result guarantees, and Invariant for
// internal consistency such as loop progress.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
//
// Example:
//
//	func Compile(handler *ast.EventHandler) (string, error) {
//	    invariant.Precondition(handler != nil, "handler must not be nil")
//	    ...
//	}
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
// Panics with POSTCONDITION VIOLATION if condition is false.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks internal consistency mid-function.
// Panics with INVARIANT VIOLATION if condition is false.
//
// Example:
//
//	for !p.atEnd() {
//	    before := p.pos
//	    stmt := p.parseStatement()
//	    invariant.Invariant(p.pos > before, "parser must consume tokens")
//	}
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils like (*T)(nil).
func NotNil(value interface{}, name string) {
	if value == nil || isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value interface{}) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// InRange panics if value is outside [minVal, maxVal].
//
// Example:
//
//	invariant.InRange(idx, 0, len(tokens)-1, "token index")
func InRange(value, minVal, maxVal int, name string) {
	if value < minVal || value > maxVal {
		fail("PRECONDITION", "%s must be in range [%d, %d], got %d",
			name, minVal, maxVal, value)
	}
}

// Advanced panics unless cur > prev. Guards tokenizer and parser loops
// against non-consuming iterations, which would otherwise spin forever.
func Advanced(prev, cur int, name string) {
	if cur <= prev {
		fail("INVARIANT", "%s must advance: was %d, now %d", name, prev, cur)
	}
}

// ExpectNoError panics if err is non-nil. For operations that cannot fail
// given already-validated input.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// fail panics with a formatted message plus the frame where the violation
// occurred.
func fail(kind, format string, args ...interface{}) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]interface{}{kind}, args...)...)
	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}

	panic(msg)
}
