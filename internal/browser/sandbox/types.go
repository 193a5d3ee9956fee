package sandbox

import (
	"time"
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Budget for one Execute, timers included
	MaxTasks      int           // Timer callbacks run per Execute
	EnableConsole bool          // Allow console.log/warn/error
}

// Result holds execution result
type Result struct {
	Value    interface{}   // Completion value of the script
	Console  []LogEntry    // Console output
	Tasks    int           // Timer callbacks that ran
	Duration time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error, info
	Message string    // Log message
	Time    time.Time // Timestamp
}

// DefaultConfig returns the configuration used for page scripts
func DefaultConfig() Config {
	return Config{
		Timeout:       2 * time.Second,
		MaxTasks:      64,
		EnableConsole: true,
	}
}
