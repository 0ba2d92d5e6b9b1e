// Command slotctl talks to the experts backend from a terminal: it lists experts, shows
// their working hours and appointments in a chosen timezone, and books a slot.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
