package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/mjeti360/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mjeti360: %v\n", err)
		os.Exit(1)
	}
}
