// Package decimal is the fixed-point storage collaborator. It exposes a
// byte width and a fallible text-to-value cast; the conversion engine never
// performs decimal arithmetic itself. Values are stored as scaled 128-bit
// two's-complement integers in little-endian layout, matching the Arrow
// decimal128 buffer format.
package decimal

import (
	"math/big"

	"github.com/shopspring/decimal"

	stringpool "github.com/ajitpratap0/tabular/pkg/strings"
)

// Caster parses decimal text into fixed-point storage bytes.
type Caster interface {
	// ByteWidth is the storage width of one value.
	ByteWidth() int

	// Cast parses text and writes ByteWidth bytes into dst. It reports
	// false when the text is not a representable decimal; the caller
	// demotes such rows to null.
	Cast(text []byte, dst []byte) bool
}

// Fixed128 casts text to scale-shifted 128-bit integers.
type Fixed128 struct {
	scale int32
}

// NewFixed128 returns a caster for the given decimal scale (digits to the
// right of the point).
func NewFixed128(scale int32) *Fixed128 {
	return &Fixed128{scale: scale}
}

// Scale returns the configured scale.
func (f *Fixed128) Scale() int32 { return f.scale }

// ByteWidth implements Caster.
func (f *Fixed128) ByteWidth() int { return 16 }

// Cast implements Caster. Values with more fractional digits than the
// scale are rounded half away from zero, like the upstream fixed-point
// storage does on construction.
func (f *Fixed128) Cast(text []byte, dst []byte) bool {
	d, err := decimal.NewFromString(stringpool.BytesToString(text))
	if err != nil {
		return false
	}
	scaled := d.Shift(f.scale).Round(0).BigInt()
	hi, lo, ok := toInt128(scaled)
	if !ok {
		return false
	}
	putUint64(dst[0:8], lo)
	putUint64(dst[8:16], uint64(hi))
	return true
}

var int128MinMagnitude = new(big.Int).Lsh(big.NewInt(1), 127)

// toInt128 converts v into a 128-bit two's-complement pair. ok is false
// when v does not fit.
func toInt128(v *big.Int) (hi int64, lo uint64, ok bool) {
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	if abs.BitLen() > 127 {
		// Magnitude 2^127 is representable on the negative side only.
		if !neg || abs.Cmp(int128MinMagnitude) != 0 {
			return 0, 0, false
		}
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo = new(big.Int).And(abs, mask).Uint64()
	hi = int64(new(big.Int).Rsh(abs, 64).Uint64())
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return hi, lo, true
}

func putUint64(b []byte, v uint64) {
	_ = b[7]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
