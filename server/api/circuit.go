package api

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/circuits/interaction"
)

// Circuit is a loaded circuit: the bulletin only ever verifies
type Circuit struct {
	Info         CircuitInfo
	VerifyingKey groth16.VerifyingKey
	Fingerprint  string
}

// VerifyStatement checks a statement proof about com
func (c *Circuit) VerifyStatement(proof groth16.Proof, com fr.Element) error {
	return interaction.VerifyStatement(c.VerifyingKey, proof, com, nil, nil)
}
