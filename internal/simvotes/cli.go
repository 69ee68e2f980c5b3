package simvotes

import (
	"os"
)

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`SmartScore Vote Simulator
=========================

Casts random scores for the spotlighted project on behalf of every active
reviewer who has not voted yet. The event must be ACCEPTING and a project
must be in the spotlight. Same-department reviewers are skipped.

Usage:
  go run ./cmd/simulate-votes [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -passcode string
        Passcode shared by the simulated reviewers (default "1234")
  -workers int
        Number of concurrent reviewers (default 8)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Enable debug logging
  -help
        Show this help message
`)
}
