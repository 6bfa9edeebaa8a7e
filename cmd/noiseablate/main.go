// Command noiseablate runs noise-ablation studies over filterbank recordings.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/noiseablate/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; only cobra's usage errors are
	// printed here.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
