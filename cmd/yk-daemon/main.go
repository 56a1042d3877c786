package main

import (
	"fmt"
	"os"

	"github.com/Berghmans/yk-daemon/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "yk-daemon:", err)
		os.Exit(1)
	}
}
