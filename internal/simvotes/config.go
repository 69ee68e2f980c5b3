package simvotes

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Passcode string        // Passcode shared by every simulated reviewer
	Workers  int           // Concurrent reviewers
	Timeout  time.Duration // HTTP request timeout
	Verbose  bool          // Log every reviewer outcome
}

// Result summarises a simulation run.
type Result struct {
	ProjectID    string
	ProjectName  string
	Voted        int // scores accepted
	Skipped      int // conflict of interest
	AlreadyVoted int // roster entries that had voted before the run
	Failed       int // login or submission errors
	Duration     time.Duration
}
