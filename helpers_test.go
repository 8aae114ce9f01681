package gudablas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestExecutor starts a policy handler with small defaults and closes it
// when the test ends.
func newTestExecutor(t *testing.T, opts ...func(*Config)) (*PolicyHandler, *Executor) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.DeviceMemory = 64 << 20
	for _, o := range opts {
		o(&cfg)
	}
	ph, err := NewPolicyHandler(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, ph.Close())
	})
	return ph, NewExecutor(ph)
}

func withLocalSize(n int) func(*Config) {
	return func(c *Config) { c.LocalSize = n }
}

func withHostReduce(n int) func(*Config) {
	return func(c *Config) { c.HostReduceThreshold = n }
}

func mustBuffer[E any](t *testing.T, ph *PolicyHandler, host []E) *Buffer[E] {
	t.Helper()
	b, err := MakeBuffer(ph, host)
	require.NoError(t, err)
	return b
}

func seq(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func nan() float64 { return math.NaN() }
