package main

import (
	"github.com/mynextid/zk-callbacks/cmd/zkproof"
	"github.com/spf13/cobra"
)

// Init the cmd
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zkcb",
		Short: "Zero-knowledge callbacks bulletin",
		Long:  `Tools and a bulletin service for anonymous users that carry callback tickets`,
	}

	rootCmd.AddCommand(
		zkproof.NewServeCmd(),
		zkproof.NewCompileCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}
