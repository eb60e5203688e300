package common

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
)

// Time is a point in time (or a relative offset) in protocol units.
type Time = uint64

// RandomElement samples a field element from rng. 48 bytes are read so the
// modular reduction bias is negligible.
func RandomElement(rng io.Reader) (fr.Element, error) {
	buf, err := GenerateRandomBytes(rng, 48)
	if err != nil {
		return fr.Element{}, err
	}
	var e fr.Element
	e.SetBigInt(new(big.Int).SetBytes(buf))
	return e, nil
}

// GenerateRandomBytes returns size bytes read from rng
func GenerateRandomBytes(rng io.Reader, size int) ([]byte, error) {
	randomBytes := make([]byte, size)
	if _, err := io.ReadFull(rng, randomBytes); err != nil {
		return nil, fmt.Errorf("read randomness: %w", err)
	}
	return randomBytes, nil
}

// Helper function to pad bytes to 32 bytes (one field element)
func PadTo32Bytes(b []byte) []byte {
	if len(b) >= fr.Bytes {
		return b
	}
	padded := make([]byte, fr.Bytes)
	copy(padded[fr.Bytes-len(b):], b)
	return padded
}

func FromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func BoolElement(b bool) fr.Element {
	if b {
		return fr.One()
	}
	return fr.Element{}
}

// Big converts e to its canonical integer, the form gnark accepts in
// witness assignments.
func Big(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// Vars converts native elements into circuit assignment values.
func Vars(es []fr.Element) []frontend.Variable {
	out := make([]frontend.Variable, len(es))
	for i := range es {
		out[i] = Big(es[i])
	}
	return out
}

// Placeholders returns n unassigned variables, used to size circuit templates.
func Placeholders(n int) []frontend.Variable {
	return make([]frontend.Variable, n)
}

// ElementToHex encodes e as a 0x-prefixed 32-byte big-endian hex string.
func ElementToHex(e fr.Element) string {
	b := e.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// ElementFromHex parses a hex string produced by ElementToHex. Values at or
// above the modulus are rejected.
func ElementFromHex(s string) (fr.Element, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fr.Element{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) > fr.Bytes {
		return fr.Element{}, fmt.Errorf("field element too long: %d bytes", len(raw))
	}
	var e fr.Element
	if err := e.SetBytesCanonical(PadTo32Bytes(raw)); err != nil {
		return fr.Element{}, fmt.Errorf("non canonical field element: %w", err)
	}
	return e, nil
}
