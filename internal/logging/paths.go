package logging

import "path/filepath"

// DataDirName is the per-project state directory.
const DataDirName = ".ai"

// LogFileName is the log file inside the data directory.
const LogFileName = "projectmind.log"

// LogPath returns the log file path for the project at root.
func LogPath(root string) string {
	return filepath.Join(root, DataDirName, LogFileName)
}
