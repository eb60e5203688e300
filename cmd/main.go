package main

import (
	"fmt"
	"os"
)

// zkcb - anonymous reputation with callbacks: compiles the bundled circuits
// and runs the bulletin service
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
