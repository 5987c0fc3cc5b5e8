package config_test

import (
	"fmt"
	"time"

	"daypulse/internal/config"
)

// Example of creating a default configuration
func ExampleDefault() {
	cfg := config.Default()
	fmt.Println("Flush Interval:", cfg.Tracker.FlushInterval)
	fmt.Println("Idle Threshold:", cfg.Tracker.IdleThreshold)
	// Output:
	// Flush Interval: 1m0s
	// Idle Threshold: 10m0s
}

// Example of setting flush interval with validation
func ExampleConfig_SetFlushInterval() {
	cfg := config.Default()

	// Valid interval
	if err := cfg.SetFlushInterval(30 * time.Second); err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Println("Flush interval set to:", cfg.Tracker.FlushInterval)
	}

	// Invalid interval (too low)
	if err := cfg.SetFlushInterval(5 * time.Second); err != nil {
		fmt.Println("Error:", err)
	}

	// Output:
	// Flush interval set to: 30s
	// Error: flush interval cannot be less than 10s
}

// Example of validating configuration
func ExampleConfig_Validate() {
	cfg := config.Default()

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid config:", err)
	} else {
		fmt.Println("Configuration is valid")
	}

	// Output:
	// Configuration is valid
}
