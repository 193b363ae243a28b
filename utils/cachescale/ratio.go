package cachescale

// Func scales default sizes of caches and buffers.
type Func interface {
	I(int) int
	U64(uint64) uint64
	F64(float64) float64
}

// Ratio alters the cache sizes proportionally to a ratio
type Ratio struct {
	Base   uint64
	Target uint64
}

var _ Func = (*Ratio)(nil)

// Identity doesn't alter the cache sizes
var Identity = Ratio{1, 1}

// U64 scales v, rounding up.
func (r Ratio) U64(v uint64) uint64 {
	muled := v * r.Target
	if muled%r.Base == 0 {
		return muled / r.Base
	}
	return muled/r.Base + 1
}

func (r Ratio) F64(v float64) float64 {
	return v * (float64(r.Target) / float64(r.Base))
}

func (r Ratio) I(v int) int {
	if v < 0 {
		return -int(r.U64(uint64(-v)))
	}
	return int(r.U64(uint64(v)))
}
