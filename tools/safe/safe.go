package safe

import (
	"fmt"
	"reflect"
	"runtime/debug"

	"PPRelay/logger"
	"PPRelay/tools/errs"

	"go.uber.org/zap"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required dependencies in constructors.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("%s must not be nil", name))
		}
	}
}

// Go starts f in a new goroutine that recovers from panic,
// so that one bad session doesn't crash the entire relay.
func Go(name string, f func()) {
	go func() {
		defer Recover(name)
		f()
	}()
}

// Recover is meant to be deferred; it logs the panic with its stack.
func Recover(name string) {
	if r := recover(); r != nil {
		logger.Error("[safe] panic recovered",
			zap.String("task", name),
			zap.Error(errs.ErrPanic(r)),
			zap.ByteString("stack", debug.Stack()))
	}
}
