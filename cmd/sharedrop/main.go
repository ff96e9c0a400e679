// Command sharedrop uploads files through the broker and fetches them back by short id.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
