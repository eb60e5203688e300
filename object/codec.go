package object

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/mynextid/zk-callbacks/crypto/rr"
)

var ErrMalformedTicket = errors.New("malformed callback ticket")

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same ticket
// always produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("object: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("object: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

type callbackComWire struct {
	TikX       []byte `cbor:"1,keyasint"`
	TikY       []byte `cbor:"2,keyasint"`
	MethodID   uint64 `cbor:"3,keyasint"`
	Expirable  bool   `cbor:"4,keyasint"`
	Expiration uint64 `cbor:"5,keyasint"`
	EncKey     []byte `cbor:"6,keyasint"`
	ComRand    []byte `cbor:"7,keyasint"`
}

// EncodeCallbackCom returns the blob stored in User.Callbacks
func EncodeCallbackCom(c CallbackCom) ([]byte, error) {
	xy := c.Ticket.Tik.Elements()
	w := callbackComWire{
		TikX:       ElementBytes(xy[0]),
		TikY:       ElementBytes(xy[1]),
		MethodID:   c.Ticket.MethodID,
		Expirable:  c.Ticket.Expirable,
		Expiration: c.Ticket.Expiration,
		EncKey:     ElementBytes(c.Ticket.EncKey),
		ComRand:    ElementBytes(c.ComRand),
	}
	b, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode callback: %w", err)
	}
	return b, nil
}

// DecodeCallbackCom parses a blob produced by EncodeCallbackCom
func DecodeCallbackCom(b []byte) (CallbackCom, error) {
	var w callbackComWire
	if err := decMode.Unmarshal(b, &w); err != nil {
		return CallbackCom{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}

	var elems [4]fr.Element
	for i, raw := range [][]byte{w.TikX, w.TikY, w.EncKey, w.ComRand} {
		e, err := ElementFromBytes(raw)
		if err != nil {
			return CallbackCom{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
		}
		elems[i] = e
	}
	tik, err := rr.FromElements(elems[0], elems[1])
	if err != nil {
		return CallbackCom{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}

	return CallbackCom{
		Ticket: CallbackTicket{
			Tik:        tik,
			MethodID:   w.MethodID,
			Expirable:  w.Expirable,
			Expiration: w.Expiration,
			EncKey:     elems[2],
		},
		ComRand: elems[3],
	}, nil
}

// ElementBytes is the 32-byte big-endian encoding of e
func ElementBytes(e fr.Element) []byte {
	b := e.Bytes()
	return b[:]
}

// ElementFromBytes parses a canonical 32-byte encoding
func ElementFromBytes(b []byte) (fr.Element, error) {
	var e fr.Element
	if len(b) != fr.Bytes {
		return e, fmt.Errorf("field element: want %d bytes, got %d", fr.Bytes, len(b))
	}
	if err := e.SetBytesCanonical(b); err != nil {
		return e, err
	}
	return e, nil
}

// ElementsBytes encodes a slice of elements
func ElementsBytes(es []fr.Element) [][]byte {
	out := make([][]byte, len(es))
	for i := range es {
		out[i] = ElementBytes(es[i])
	}
	return out
}

// ElementsFromBytes decodes a slice of elements
func ElementsFromBytes(bs [][]byte) ([]fr.Element, error) {
	out := make([]fr.Element, len(bs))
	for i := range bs {
		e, err := ElementFromBytes(bs[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
