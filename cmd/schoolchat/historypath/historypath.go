// Package historypath resolves where the chat history cache lives.
package historypath

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvVar overrides the default location.
	EnvVar = "SCHOOLCHAT_HISTORY"

	dirName  = ".schoolchat"
	fileName = "history.db"
)

// ResolveHistoryPath returns flagValue if set, then $SCHOOLCHAT_HISTORY, then
// ~/.schoolchat/history.db. The parent directory is created if missing.
func ResolveHistoryPath(flagValue string) (string, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not find home directory: %w", err)
		}
		path = filepath.Join(home, dirName, fileName)
	}

	if path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create history directory: %w", err)
	}
	return path, nil
}
