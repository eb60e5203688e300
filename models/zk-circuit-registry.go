package models

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/zeebo/blake3"
)

var ErrUnknownKey = errors.New("verifying key not registered")

// KeyRegistry provides a trusted source for verifying keys
type KeyRegistry interface {
	// GetVerifyingKey retrieves a verifying key by its fingerprint
	GetVerifyingKey(fingerprint string) (groth16.VerifyingKey, error)
	// RegisterVerifyingKey stores a verifying key and returns its fingerprint
	RegisterVerifyingKey(vk groth16.VerifyingKey, circuitID string) (string, error)
	// List lists the registered circuits
	List() []CircuitInfo
}

type CircuitInfo struct {
	ID        string `json:"id"`
	Integrity string `json:"integrity"`
}

// Fingerprint is the blake3 digest of the serialized verifying key
func Fingerprint(vk groth16.VerifyingKey) (string, error) {
	b, err := common.VerifyingKeyBytes(vk)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return "blake3-" + hex.EncodeToString(sum[:]), nil
}

type registeredKey struct {
	info CircuitInfo
	vk   groth16.VerifyingKey
}

// MemoryKeyRegistry is a KeyRegistry held in memory
type MemoryKeyRegistry struct {
	mu   sync.RWMutex
	keys map[string]registeredKey
}

func NewKeyRegistry() *MemoryKeyRegistry {
	return &MemoryKeyRegistry{keys: make(map[string]registeredKey)}
}

func (r *MemoryKeyRegistry) RegisterVerifyingKey(vk groth16.VerifyingKey, circuitID string) (string, error) {
	fp, err := Fingerprint(vk)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.keys[fp]; ok && prev.info.ID != circuitID {
		return "", fmt.Errorf("key %s already registered for circuit %s", fp, prev.info.ID)
	}
	r.keys[fp] = registeredKey{info: CircuitInfo{ID: circuitID, Integrity: fp}, vk: vk}
	return fp, nil
}

func (r *MemoryKeyRegistry) GetVerifyingKey(fingerprint string) (groth16.VerifyingKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[fingerprint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, fingerprint)
	}
	return k.vk, nil
}

// List returns the registered circuits ordered by id
func (r *MemoryKeyRegistry) List() []CircuitInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CircuitInfo, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, k.info)
	}
	slices.SortFunc(out, func(a, b CircuitInfo) int {
		if a.ID != b.ID {
			if a.ID < b.ID {
				return -1
			}
			return 1
		}
		if a.Integrity < b.Integrity {
			return -1
		}
		if a.Integrity > b.Integrity {
			return 1
		}
		return 0
	})
	return out
}
