package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version and commit info
// set with -ldflags "-X main.version=..." at build time
var (
	version   = ""
	commit    = "none"
	buildDate = "unknown"
)

// NewVersionCmd returns a version information cmd
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			v := version
			if v == "" {
				// go install builds carry the module version instead
				if info, ok := debug.ReadBuildInfo(); ok {
					v = info.Main.Version
				}
			}
			fmt.Printf("zkcb\n")
			fmt.Printf("  version: %s\n", v)
			fmt.Printf("  commit:  %s\n", commit)
			fmt.Printf("  built:   %s\n", buildDate)
		},
	}
}
