// SPDX-License-Identifier: MPL-2.0

package config

import "sync/atomic"

// dirOverride replaces the platform config directory when non-empty.
// os.UserHomeDir ignores HOME on some CI runners, so tests pin the
// directory here instead.
var dirOverride atomic.Pointer[string]

// SetConfigDirOverride makes ConfigDir return dir until Reset is called.
func SetConfigDirOverride(dir string) {
	dirOverride.Store(&dir)
}

// Reset drops any directory override.
func Reset() {
	dirOverride.Store(nil)
}

func overriddenConfigDir() (string, bool) {
	dir := dirOverride.Load()
	if dir == nil || *dir == "" {
		return "", false
	}
	return *dir, true
}
