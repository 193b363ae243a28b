package cachescale

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	require.Equal(t, 100, Identity.I(100))

	half := Ratio{Base: 2, Target: 1}
	require.Equal(t, uint64(50), half.U64(100))
	require.Equal(t, uint64(51), half.U64(101))
	require.Equal(t, -50, half.I(-100))
	require.Equal(t, 0.5, half.F64(1))

	double := Ratio{Base: 1, Target: 2}
	require.Equal(t, 200, double.I(100))
}
