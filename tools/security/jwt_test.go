package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	req := require.New(t)
	opts := DefaultOptions([]byte("test-secret"))

	token, exp, err := Generate(opts, "alice")
	req.NoError(err)
	req.NotEmpty(token)
	req.WithinDuration(time.Now().Add(2*time.Hour), exp, time.Minute)

	sub, err := Verify(opts, token)
	req.NoError(err)
	req.Equal("alice", sub)
}

func TestVerifyRejects(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, err := Generate(opts, "bob")
	require.NoError(t, err)

	expiredToken, _, err := Generate(Options{Secret: opts.Secret, TTL: time.Nanosecond}, "bob")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name  string
		opts  Options
		token string
	}{
		{"wrong secret", DefaultOptions([]byte("other")), token},
		{"garbage", opts, "not-a-token"},
		{"expired", opts, expiredToken},
		{"alg mismatch", Options{Secret: opts.Secret, Alg: "HS512"}, token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(tt.opts, tt.token)
			require.Error(t, err)
		})
	}
}

func TestGenerateRejectsEmptyUser(t *testing.T) {
	_, _, err := Generate(DefaultOptions([]byte("s")), "")
	require.Error(t, err)
}
