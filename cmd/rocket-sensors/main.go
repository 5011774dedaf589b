// Package main is the rocket-sensors command. It serves the sensors of a config over HTTP and MQTT
// and offers one-shot reads and tares.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
