package errs

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	req := require.New(t)
	cause := errors.New("dial tcp: refused")
	err := ErrStoreUnavailable.Wrap(pkgerrors.Wrap(cause, "rpush"))

	req.ErrorIs(err, ErrStoreUnavailable)
	req.ErrorIs(err, cause)
	req.NotErrorIs(err, ErrMalformedFrame)

	ce := AsCode(err)
	req.Equal(CodeStoreUnavailable, ce.Code)
	req.Contains(ce.Detail, "refused")
	req.Equal("1501 pending store unavailable rpush: dial tcp: refused", err.Error())
}

func TestWithDetailAppends(t *testing.T) {
	ce := ErrMalformedFrame.WithDetail("recipient is required").WithDetail("id=m1")
	require.Equal(t, "recipient is required, id=m1", ce.Detail)
	require.Empty(t, ErrMalformedFrame.Detail)
}

func TestAsCodeFallsBackToInternal(t *testing.T) {
	req := require.New(t)
	req.Equal(CodeError{}, AsCode(nil))
	ce := AsCode(errors.New("boom"))
	req.Equal(ServerInternalError, ce.Code)
	req.Equal("boom", ce.Detail)
}

func TestErrPanic(t *testing.T) {
	require.Nil(t, ErrPanic(nil))
	ce := AsCode(ErrPanic("nil map write"))
	require.Equal(t, ServerInternalError, ce.Code)
	require.Equal(t, "nil map write", ce.Detail)
}
