// Package enc encrypts callback arguments with a MiMC mask chain. The ticket
// holder knows the key and can decrypt inside a circuit.
package enc

import (
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
)

// NewKey samples a fresh symmetric key
func NewKey(rng io.Reader) (fr.Element, error) {
	return common.RandomElement(rng)
}

// masks returns H(key), H(H(key)), ...
func masks(key fr.Element, n int) []fr.Element {
	out := make([]fr.Element, n)
	m := key
	for i := range out {
		m = common.Hash(m)
		out[i] = m
	}
	return out
}

// Encrypt returns ct_i = msg_i + mask_i
func Encrypt(key fr.Element, msg []fr.Element) []fr.Element {
	ms := masks(key, len(msg))
	ct := make([]fr.Element, len(msg))
	for i := range msg {
		ct[i].Add(&msg[i], &ms[i])
	}
	return ct
}

func Decrypt(key fr.Element, ct []fr.Element) []fr.Element {
	ms := masks(key, len(ct))
	msg := make([]fr.Element, len(ct))
	for i := range ct {
		msg[i].Sub(&ct[i], &ms[i])
	}
	return msg
}

// DecryptVars decrypts a ciphertext in the circuit using the same mask chain
func DecryptVars(api frontend.API, key frontend.Variable, ct []frontend.Variable) ([]frontend.Variable, error) {
	out := make([]frontend.Variable, len(ct))
	mask := key
	for i := range ct {
		m, err := common.HashVars(api, mask)
		if err != nil {
			return nil, err
		}
		mask = m
		out[i] = api.Sub(ct[i], mask)
	}
	return out, nil
}
