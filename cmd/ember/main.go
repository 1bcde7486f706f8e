// Command ember is the console for the object store.
package main

import (
	"fmt"
	"os"

	"github.com/emberworks/ember-store/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
