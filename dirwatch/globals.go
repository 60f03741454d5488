package internal

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

var (
	// DefaultConfigPath is the default path to the config file
	DefaultAppName        = "dirwatch"
	DefaultAppCMDShortCut = "dw"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultJournalPath    = filepath.Join(DefaultConfigPath, "journal.db")

	// Default journal settings
	DefaultJournalDSN  = "file::memory:?cache=shared" // Default to in-memory SQLite
	DefaultJournalType = "libsql"
)

// MaxPathLength is the longest path the watcher will accept for a raw event.
// Anything longer is dropped before it reaches the pending map.
var MaxPathLength = func() int {
	if runtime.GOOS == "windows" {
		return 259
	}
	return 4096
}()

// CaseInsensitivePaths reports whether path identity follows the platform's
// case-insensitive comparison convention.
var CaseInsensitivePaths = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			// Last resort - use tmp directory
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
