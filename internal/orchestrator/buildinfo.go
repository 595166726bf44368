package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// buildInfoFile is the marker recording the flags of the previous run at
// the game root.
const buildInfoFile = ".assetforge-build-info.json"

// BuildInfo is the persisted state of the previous run. A production flag
// that differs from the current run's invalidates all prior output and
// forces a full clean.
type BuildInfo struct {
	Production bool `json:"production"`
}

// ReadBuildInfo loads the marker file from the game root. A missing or
// unreadable marker returns ok=false.
func ReadBuildInfo(gameRoot string) (BuildInfo, bool) {
	data, err := os.ReadFile(filepath.Join(gameRoot, buildInfoFile))
	if err != nil {
		return BuildInfo{}, false
	}
	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return BuildInfo{}, false
	}
	return info, true
}

// WriteBuildInfo records the current run's flags at the game root.
func WriteBuildInfo(gameRoot string, info BuildInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(gameRoot, buildInfoFile), data, 0o644)
}
