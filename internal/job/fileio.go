package job

import (
	"fmt"
	"os"
	"path/filepath"
)

func activePath(pluginDir, name string) string {
	return filepath.Join(pluginDir, name+".jpi")
}

func legacyPath(pluginDir, name string) string {
	return filepath.Join(pluginDir, name+".hpi")
}

func backupPath(pluginDir, name string) string {
	return filepath.Join(pluginDir, name+".bak")
}

func tempPath(pluginDir, name string) string {
	return filepath.Join(pluginDir, name+".jpi.tmp")
}

// restoreBackup atomically renames a plugin's .bak file over its active
// .jpi, for PluginDowngradeJob (spec §4.9).
func restoreBackup(pluginDir, name string) error {
	bak := backupPath(pluginDir, name)
	if _, err := os.Stat(bak); err != nil {
		return fmt.Errorf("no backup available for %s: %w", name, err)
	}
	return os.Rename(bak, activePath(pluginDir, name))
}
