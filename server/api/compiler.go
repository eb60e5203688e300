package api

import (
	"fmt"
	"path/filepath"

	"github.com/consensys/gnark/frontend"
	"github.com/mynextid/zk-callbacks/common"
	"github.com/mynextid/zk-callbacks/models"
)

// CircuitInfo describes a bundled circuit and where its keys live
type CircuitInfo struct {
	Template func() (frontend.Circuit, error)
	Dir      string
	Name     string
	Version  uint
}

// Paths returns the constraint system, proving key and verifying key files
func (ci CircuitInfo) Paths() (ccs, pk, vk string) {
	base := filepath.Join(ci.Dir, fmt.Sprintf("%s-%d", ci.Name, ci.Version))
	return base + ".ccs", base + ".pk", base + ".vk"
}

// Compile compiles the circuit, or loads it when its files exist and force
// is unset, and returns the keys with the verifying key fingerprint.
func (ci CircuitInfo) Compile(force bool) (*common.Keys, string, error) {
	template, err := ci.Template()
	if err != nil {
		return nil, "", fmt.Errorf("%s template: %w", ci.Name, err)
	}
	ccsPath, pkPath, vkPath := ci.Paths()
	keys, err := common.InitCircuit(ccsPath, pkPath, vkPath, force, template)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", ci.Name, err)
	}
	fp, err := models.Fingerprint(keys.VerifyingKey)
	if err != nil {
		return nil, "", err
	}
	return keys, fp, nil
}
