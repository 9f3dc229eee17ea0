// Command voxterm hosts an interactive AI-coding CLI under a PTY and adds
// hot-key-triggered voice capture with a heads-up display.
package main

import (
	"fmt"
	"os"

	"github.com/voxterm/voxterm/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxterm:", err)
		os.Exit(1)
	}
}
