// Package main is the entry point for the airsniff sniffer driver.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/airsniff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
