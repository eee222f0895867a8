package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sonemaro/linecounter/cmd/linecounter/app"
	"github.com/sonemaro/linecounter/cmd/linecounter/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, app.ErrCancelled) {
			os.Exit(app.ExitInterrupted)
		}
		os.Exit(1)
	}
}
