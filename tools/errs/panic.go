package errs

import (
	"fmt"
)

func ErrPanic(r any) error {
	return ErrPanicMsg(r, ServerInternalError, "panic error")
}

func ErrPanicMsg(r any, code int, msg string) error {
	if r == nil {
		return nil
	}
	return CodeError{
		Code:   code,
		Msg:    msg,
		Detail: fmt.Sprint(r),
	}
}
