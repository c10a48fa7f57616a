package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string        `json:"name"`
	Ratio   *float64      `json:"ratio"`
	Enabled bool          `json:"enabled"`
	Count   int           `json:"count"`
	Every   time.Duration `json:"every"`
}

func TestDecodeTextJSON(t *testing.T) {
	req := require.New(t)
	out, err := DecodeText[sample](`{"name":" relay ","ratio":0.25,"enabled":true,"count":3.0,"every":"2s"}`)
	req.NoError(err)
	req.Equal("relay", out.Name)
	req.NotNil(out.Ratio)
	req.InDelta(0.25, *out.Ratio, 1e-9)
	req.True(out.Enabled)
	req.Equal(3, out.Count)
	req.Equal(2*time.Second, out.Every)
}

func TestDecodeTextKeyValueLines(t *testing.T) {
	req := require.New(t)
	out, err := DecodeText[sample]("# live tunables\nratio=0.5\n\nenabled = true\n")
	req.NoError(err)
	req.InDelta(0.5, *out.Ratio, 1e-9)
	req.True(out.Enabled)
	req.Empty(out.Name)
}

func TestDecodeTextErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "{not json", "ratio"} {
		_, err := DecodeText[sample](in)
		require.Error(t, err, "input %q", in)
	}
}
