package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/numduel/internal/cmd"
	"github.com/Iron-Ham/numduel/internal/errors"
)

func main() {
	err := cmd.Execute()
	code := errors.ExitCode(err)
	if code != 0 {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}
