// Command medscore generates cohorts, trains catalogued clinical models and
// scores record batches against the trained artifacts.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
