// Command nbsftp is a command line SFTP client built on a non-blocking session.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/nbsftp/internal/cli"
)

// set by the release build
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
