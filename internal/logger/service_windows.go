//go:build windows

package logger

import "os"

// IsService checks if the application is running as a service. Services
// started by the SCM have no console attached to stdin.
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}

	return os.Getenv("SERVICE_NAME") != ""
}
