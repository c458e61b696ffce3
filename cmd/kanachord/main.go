// Command kanachord compiles kana chording layouts into Karabiner-Elements
// complex modification documents.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/peterjc/kana-chording-ke/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "kanachord: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
