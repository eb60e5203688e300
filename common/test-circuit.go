package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/consensys/gnark/frontend"
)

// InitCircuit loads the keys stored at the given paths, compiling and running
// the setup first when they are missing or forceCompile is set.
func InitCircuit(ccsPath, pkPath, vkPath string, forceCompile bool, circuitTemplate frontend.Circuit) (*Keys, error) {
	// Validate paths to prevent directory traversal attacks
	for _, p := range []string{ccsPath, pkPath, vkPath} {
		if err := ValidatePath(p); err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
	}

	// Create all necessary subdirectories
	if err := ensureDirectories(ccsPath, pkPath, vkPath); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if forceCompile {
		for _, p := range []string{ccsPath, pkPath, vkPath} {
			if err := safeRemove(p); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}

	if fileExists(ccsPath) && fileExists(pkPath) && fileExists(vkPath) {
		return LoadSetup(ccsPath, pkPath, vkPath)
	}

	return SetupAndSave(circuitTemplate, ccsPath, pkPath, vkPath)
}

// TestCircuit executes witness and proof creation, and verification. The function times the real function time of execution
func TestCircuit(assignment frontend.Circuit, keys *Keys) error {
	log := Logger("test-circuit")

	startProof := time.Now()
	proof, err := keys.Prove(assignment)
	if err != nil {
		return err
	}
	proofTime := time.Since(startProof)

	startVerify := time.Now()
	if err := VerifyProof(keys.VerifyingKey, proof, assignment); err != nil {
		return err
	}
	verifyTime := time.Since(startVerify)

	log.Info().
		Int("constraints", keys.CS.GetNbConstraints()).
		Dur("prove", proofTime).
		Dur("verify", verifyTime).
		Msg("proof verified")
	return nil
}

// ValidatePath rejects empty paths and paths climbing out of their base
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("empty path")
	}
	parts := strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
	if slices.Contains(parts, "..") {
		return fmt.Errorf("path %q escapes its base directory", p)
	}
	return nil
}

func ensureDirectories(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func safeRemove(p string) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
