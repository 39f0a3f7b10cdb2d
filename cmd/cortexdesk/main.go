// Command cortexdesk is the CLI entrypoint, grounded on the teacher's
// cmd/main.go + internal/cli.NewRootCmd() split: main() does nothing but
// build and execute the cobra root command.
package main

import (
	"fmt"
	"os"

	"github.com/dyike/CortexGo/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
