package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// ErrUnsatisfied is returned when a witness does not satisfy the constraint
// system. It is detected before any proving attempt.
var ErrUnsatisfied = errors.New("constraints not satisfied")

// ErrProve wraps failures of the proving backend itself
var ErrProve = errors.New("proof generation failed")

// Keys bundles a compiled circuit with its proving and verifying keys
type Keys struct {
	CS           constraint.ConstraintSystem
	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
}

// Compile builds the R1CS of circuitTemplate over BN254
func Compile(circuitTemplate frontend.Circuit) (constraint.ConstraintSystem, error) {
	// some witness layouts carry values a given circuit never reads,
	// e.g. the randomness of scanned tickets
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuitTemplate, frontend.IgnoreUnconstrainedInputs())
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return ccs, nil
}

// Setup compiles circuitTemplate and runs the groth16 setup in memory
func Setup(circuitTemplate frontend.Circuit) (*Keys, error) {
	log := Logger("setup")

	start := time.Now()
	ccs, err := Compile(circuitTemplate)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("constraints", ccs.GetNbConstraints()).Dur("took", time.Since(start)).Msg("circuit compiled")

	start = time.Now()
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	log.Debug().Dur("took", time.Since(start)).Msg("setup completed")

	return &Keys{CS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

// Save compiled circuit and keys
func (k *Keys) Save(ccsPath, pkPath, vkPath string) error {
	if err := writeTo(ccsPath, k.CS); err != nil {
		return fmt.Errorf("save constraint system: %w", err)
	}
	if err := writeTo(pkPath, k.ProvingKey); err != nil {
		return fmt.Errorf("save proving key: %w", err)
	}
	if err := writeTo(vkPath, k.VerifyingKey); err != nil {
		return fmt.Errorf("save verifying key: %w", err)
	}
	return nil
}

// SetupAndSave compiles the circuit, runs the setup and stores the result
func SetupAndSave(circuitTemplate frontend.Circuit, ccsPath, pkPath, vkPath string) (*Keys, error) {
	keys, err := Setup(circuitTemplate)
	if err != nil {
		return nil, err
	}
	if err := keys.Save(ccsPath, pkPath, vkPath); err != nil {
		return nil, err
	}
	Logger("setup").Info().Str("vk", vkPath).Msg("setup completed and saved")
	return keys, nil
}

// Load pre-compiled circuit and keys
func LoadSetup(ccsPath, pkPath, vkPath string) (*Keys, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if err := readFrom(ccsPath, ccs); err != nil {
		return nil, fmt.Errorf("load constraint system: %w", err)
	}

	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(pkPath, pk); err != nil {
		return nil, fmt.Errorf("load proving key: %w", err)
	}

	vk, err := LoadVerifyingKey(vkPath)
	if err != nil {
		return nil, err
	}

	Logger("setup").Debug().Str("ccs", ccsPath).Msg("loaded pre-compiled setup")
	return &Keys{CS: ccs, ProvingKey: pk, VerifyingKey: vk}, nil
}

// LoadVerifyingKey reads only the verifying key, which is all a verifier needs
func LoadVerifyingKey(vkPath string) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(vkPath, vk); err != nil {
		return nil, fmt.Errorf("load verifying key: %w", err)
	}
	return vk, nil
}

// IsSolved compiles circuitTemplate and checks assignment against it without
// running a setup. Unlike gnark's test engine it does not clone the circuit,
// so templates may carry func fields.
func IsSolved(circuitTemplate, assignment frontend.Circuit) error {
	ccs, err := Compile(circuitTemplate)
	if err != nil {
		return err
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("witness creation failed: %w", err)
	}
	if err := ccs.IsSolved(witness); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsatisfied, err)
	}
	return nil
}

// Prove checks the assignment against the constraint system and, if it is
// satisfied, produces a groth16 proof.
func (k *Keys) Prove(assignment frontend.Circuit) (groth16.Proof, error) {
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}

	if err := k.CS.IsSolved(witness); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsatisfied, err)
	}

	start := time.Now()
	proof, err := groth16.Prove(k.CS, k.ProvingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProve, err)
	}
	Logger("prover").Debug().Dur("took", time.Since(start)).Msg("proof generated")
	return proof, nil
}

// VerifyProof verifies proof against the public part of assignment
func VerifyProof(vk groth16.VerifyingKey, proof groth16.Proof, assignment frontend.Circuit) error {
	pw, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	if err := groth16.Verify(proof, vk, pw); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// ProofBytes serializes a proof
func ProofBytes(proof groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("proof to buffer failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadProof parses a proof serialized by ProofBytes
func ReadProof(b []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("failed to parse the proof: %w", err)
	}
	return proof, nil
}

// VerifyingKeyBytes serializes a verifying key
func VerifyingKeyBytes(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("verifying key to buffer failed: %w", err)
	}
	return buf.Bytes(), nil
}

type writerTo interface {
	WriteTo(w io.Writer) (int64, error)
}

type readerFrom interface {
	ReadFrom(r io.Reader) (int64, error)
}

func writeTo(path string, v writerTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = v.WriteTo(f)
	return err
}

func readFrom(path string, v readerFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = v.ReadFrom(f)
	return err
}
