// utils/logger.go
package utils

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Global verbose flag
var Verbose = true

// InitLogger configures the process logger. Level is one of debug, info,
// warn, error; format is "text" or "json".
func InitLogger(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	Verbose = lvl >= logrus.DebugLevel

	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	logrus.Infof(format, args...)
}

// LogDebug logs a debug message if verbose mode is enabled
func LogDebug(format string, args ...interface{}) {
	if Verbose {
		logrus.Debugf(format, args...)
	}
}

// LogWarn logs a warning message
func LogWarn(format string, args ...interface{}) {
	logrus.Warnf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
}

// SetVerbose sets the verbose logging mode
func SetVerbose(v bool) {
	Verbose = v
	if v {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// GetVerbose returns the current verbose logging mode
func GetVerbose() bool {
	return Verbose
}

// Contains checks if a string is in a slice
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// NewSeededRand creates a new seeded random number generator
func NewSeededRand(seed int64) *rand.Rand {
	source := rand.NewSource(seed)
	return rand.New(source)
}

// PrintStartupMessage prints a formatted startup message
func PrintStartupMessage(nodeID string, port int) {
	fmt.Println("---------------------------------------------------")
	fmt.Printf("| GridTokenX Node Started                          |\n")
	fmt.Printf("| Node ID: %-38s |\n", nodeID)
	fmt.Printf("| Port: %-41d |\n", port)
	fmt.Printf("| Mode: %-41s |\n", fmt.Sprintf("HTTP Server (:%d)", port))
	fmt.Println("---------------------------------------------------")
}
