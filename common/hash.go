package common

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// Hash computes MiMC over the given elements. HashVars is its in-circuit twin.
func Hash(elems ...fr.Element) fr.Element {
	h := nativemimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		// canonical encodings are always below the modulus
		_, _ = h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// HashVars computes MiMC over vars inside a circuit
func HashVars(api frontend.API, vars ...frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, fmt.Errorf("mimc: %w", err)
	}
	h.Write(vars...)
	return h.Sum(), nil
}
