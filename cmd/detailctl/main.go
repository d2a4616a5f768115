package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/detailing/internal/cli"
	_ "github.com/JonMunkholm/detailing/internal/tables/templates" // Register export templates
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
