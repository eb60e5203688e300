package zkproof

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/mynextid/zk-callbacks/models"
	"github.com/mynextid/zk-callbacks/server/api"
	"github.com/spf13/cobra"
)

// IntegrityFile lists the fingerprints of the compiled verifying keys
const IntegrityFile = "integrity.json"

type compileConfig struct {
	outputDir string
	circuits  []string
	force     bool
}

func NewCompileCmd() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile circuits and generate setup files",
		Long:  `Compile the bundled circuits and generate constraint systems, proving keys and verification keys, with the blake3 fingerprint of every verification key. The list of circuits is in server/api/list.go`,
		Example: `  # Compile all circuits
  zkcb compile -o ./setup

  # Compile specific circuits
  zkcb compile -o ./setup -c join,increment
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.outputDir, "output", "o", "./setup", "Output directory for compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.circuits, "circuits", "c", []string{}, "Specific circuits to compile (comma-separated, empty = all)")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runCompile(cfg *compileConfig) error {
	// Create output directory
	if err := os.MkdirAll(cfg.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	circuitsToCompile := cfg.circuits
	if len(circuitsToCompile) == 0 {
		for name := range api.CircuitList {
			circuitsToCompile = append(circuitsToCompile, name)
		}
		slices.Sort(circuitsToCompile)
	}

	fmt.Printf("\n==== Compiling %d circuits to %s ====\n", len(circuitsToCompile), cfg.outputDir)

	var compiled []models.CircuitInfo
	for _, name := range circuitsToCompile {
		info, ok := api.CircuitList[name]
		if !ok {
			fmt.Printf("Circuit %s not found, skipping\n", name)
			continue
		}
		info.Dir = cfg.outputDir

		start := time.Now()
		fmt.Printf("Compiling %s...\n", name)

		// existing files are loaded instead of compiled unless forced
		keys, fp, err := info.Compile(cfg.force)
		if err != nil {
			fmt.Printf("[X] Failed to compile %s: %v\n", name, err)
			continue
		}

		elapsed := time.Since(start)
		fmt.Printf("[OK] %s: %d constraints in %s\n     %s\n", name, keys.CS.GetNbConstraints(), elapsed.Round(time.Second), fp)
		compiled = append(compiled, models.CircuitInfo{
			ID:        fmt.Sprintf("%s-%d", info.Name, info.Version),
			Integrity: fp,
		})
	}

	if err := writeIntegrity(filepath.Join(cfg.outputDir, IntegrityFile), compiled); err != nil {
		return err
	}

	fmt.Println("\n==== Compilation complete ====")
	return nil
}

// writeIntegrity merges the new fingerprints into the integrity file
func writeIntegrity(path string, compiled []models.CircuitInfo) error {
	var all []models.CircuitInfo
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &all); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	for _, c := range compiled {
		all = slices.DeleteFunc(all, func(o models.CircuitInfo) bool { return o.ID == c.ID })
		all = append(all, c)
	}
	slices.SortFunc(all, func(a, b models.CircuitInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
