// Command ecojourney estimates flight emissions, prices SAF contributions
// and serves the eco-points API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/ecojourney/internal/cli"
	"github.com/rshade/ecojourney/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
