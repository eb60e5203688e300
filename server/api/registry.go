package api

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/models"
)

// CircuitRegistry stores the verifying keys of loaded circuits by name and
// mirrors them into a fingerprint-addressed key registry.
type CircuitRegistry struct {
	mu       sync.RWMutex
	Circuits map[string]*Circuit
	Keys     models.KeyRegistry
}

// NewCircuitRegistry creates a new registry
func NewCircuitRegistry(keys models.KeyRegistry) *CircuitRegistry {
	return &CircuitRegistry{
		Circuits: make(map[string]*Circuit),
		Keys:     keys,
	}
}

// LoadAll loads every bundled circuit from dir
func (cr *CircuitRegistry) LoadAll(dir string) error {
	for _, v := range CircuitList {
		v.Dir = dir
		if err := cr.LoadCircuit(v); err != nil {
			return err
		}
	}
	return nil
}

// LoadCircuit reads the verifying key of ci. Verifiers never need the
// constraint system or the proving key.
func (cr *CircuitRegistry) LoadCircuit(ci CircuitInfo) error {
	_, _, vkPath := ci.Paths()
	if err := common.ValidatePath(vkPath); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	vk, err := common.LoadVerifyingKey(vkPath)
	if err != nil {
		return fmt.Errorf("failed to load the circuit: %w", err)
	}
	return cr.Register(ci, vk)
}

// Register registers the verifying key of a circuit under its name
func (cr *CircuitRegistry) Register(ci CircuitInfo, vk groth16.VerifyingKey) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, ok := cr.Circuits[ci.Name]; ok {
		return fmt.Errorf("circuit with name %s already exists", ci.Name)
	}
	fp, err := cr.Keys.RegisterVerifyingKey(vk, fmt.Sprintf("%s-%d", ci.Name, ci.Version))
	if err != nil {
		return err
	}
	cr.Circuits[ci.Name] = &Circuit{Info: ci, VerifyingKey: vk, Fingerprint: fp}
	return nil
}

// Get returns a circuit by name
func (cr *CircuitRegistry) Get(name string) (*Circuit, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if c, ok := cr.Circuits[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("circuit %s not found", name)
}

// Lookup returns the loaded circuit whose verifying key has the given
// fingerprint
func (cr *CircuitRegistry) Lookup(fingerprint string) (*Circuit, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	for _, c := range cr.Circuits {
		if c.Fingerprint == fingerprint {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownKey, fingerprint)
}
