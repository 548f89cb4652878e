package fieldbus

import (
	"fmt"
	"math"
)

// Encoding identifies how a register value is laid out on the wire.
type Encoding string

// Supported register value encodings.
const (
	// EncodingInt16 is a single signed 16-bit register.
	EncodingInt16 Encoding = "int16"

	// EncodingUint16 is a single unsigned 16-bit register.
	EncodingUint16 Encoding = "uint16"

	// EncodingInt32 is two registers combined as a signed 32-bit integer,
	// high word first.
	EncodingInt32 Encoding = "int32"

	// EncodingFloat32 is two registers combined as an IEEE-754 single
	// precision float, high word first.
	EncodingFloat32 Encoding = "float32"

	// EncodingBool is a single bit (coil or discrete input).
	EncodingBool Encoding = "bool"
)

// WordCount returns the number of 16-bit words the encoding occupies.
//
// Returns 0 for an unknown encoding.
func (e Encoding) WordCount() int {
	switch e {
	case EncodingInt16, EncodingUint16, EncodingBool:
		return 1
	case EncodingInt32, EncodingFloat32:
		return 2
	default:
		return 0
	}
}

// Valid reports whether the encoding is one of the supported values.
func (e Encoding) Valid() bool {
	return e.WordCount() > 0
}

// Decode converts a word group read from a device into a numeric value.
//
// For 32-bit encodings the words combine big-endian word order: words[0]
// holds the high 16 bits. Scale factors are applied by the caller, not here.
//
// Parameters:
//   - words: Raw 16-bit registers, exactly enc.WordCount() long
//   - enc: The value encoding
//
// Returns:
//   - float64: Decoded value (booleans decode to 0 or 1)
//   - error: ErrDecodingFailed if the word count does not match the encoding
func Decode(words []uint16, enc Encoding) (float64, error) {
	if !enc.Valid() {
		return 0, fmt.Errorf("%w: unknown encoding %q", ErrDecodingFailed, enc)
	}
	if len(words) != enc.WordCount() {
		return 0, fmt.Errorf("%w: %s requires %d words, got %d", ErrDecodingFailed, enc, enc.WordCount(), len(words))
	}

	switch enc {
	case EncodingInt16:
		return float64(int16(words[0])), nil
	case EncodingUint16:
		return float64(words[0]), nil
	case EncodingBool:
		if words[0] != 0 {
			return 1, nil
		}
		return 0, nil
	case EncodingInt32:
		raw := uint32(words[0])<<16 | uint32(words[1])
		return float64(int32(raw)), nil
	case EncodingFloat32:
		raw := uint32(words[0])<<16 | uint32(words[1])
		return float64(math.Float32frombits(raw)), nil
	default:
		return 0, fmt.Errorf("%w: unknown encoding %q", ErrDecodingFailed, enc)
	}
}

// Encode converts a numeric value into the word group to write to a device.
//
// Inverse of Decode: Decode(Encode(v)) == v exactly for integer encodings and
// within float32 precision for EncodingFloat32.
//
// Parameters:
//   - value: The value to encode (booleans: zero is false, non-zero is true)
//   - enc: The value encoding
//
// Returns:
//   - []uint16: Words in device order (high word first for 32-bit encodings)
//   - error: ErrValueRange if an integer value does not fit the encoding,
//     ErrEncodingFailed for an unknown encoding or non-integral value on an
//     integer encoding
func Encode(value float64, enc Encoding) ([]uint16, error) {
	switch enc {
	case EncodingInt16:
		i, err := integral(value, enc, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(int16(i))}, nil
	case EncodingUint16:
		i, err := integral(value, enc, 0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(i)}, nil
	case EncodingBool:
		if value != 0 {
			return []uint16{1}, nil
		}
		return []uint16{0}, nil
	case EncodingInt32:
		i, err := integral(value, enc, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		raw := uint32(int32(i))
		return []uint16{uint16(raw >> 16), uint16(raw)}, nil
	case EncodingFloat32:
		if value > math.MaxFloat32 || value < -math.MaxFloat32 {
			return nil, fmt.Errorf("%w: %g does not fit float32", ErrValueRange, value)
		}
		raw := math.Float32bits(float32(value))
		return []uint16{uint16(raw >> 16), uint16(raw)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrEncodingFailed, enc)
	}
}

// integral validates that value is a whole number within [min, max].
func integral(value float64, enc Encoding, min, max int64) (int64, error) {
	if value != math.Trunc(value) || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s requires an integral value, got %g", ErrEncodingFailed, enc, value)
	}
	if value < float64(min) || value > float64(max) {
		return 0, fmt.Errorf("%w: %g outside %s range [%d, %d]", ErrValueRange, value, enc, min, max)
	}
	return int64(value), nil
}
