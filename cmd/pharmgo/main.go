// Command pharmgo is the pharmacometric model toolkit CLI.
package main

import (
	"os"

	"github.com/pharmgo/pharmgo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
