package ffmpeg

import (
	"fmt"
	"os"
	"os/exec"
)

// Environment variables that override binary discovery for the two
// tools clipforge shells out to.
const (
	EnvFFmpegPath  = "CLIPFORGE_FFMPEG_BINARY"
	EnvFFprobePath = "CLIPFORGE_FFPROBE_BINARY"
)

// LocateBinary resolves the path to an external tool. Resolution order:
// an override environment variable, a sibling binary in the working
// directory, then PATH. The override and working-directory candidates
// must exist and carry an executable bit.
func LocateBinary(name, envVar string) (string, error) {
	if envVar != "" {
		if override := os.Getenv(envVar); override != "" && executable(override) {
			return override, nil
		}
	}

	if local := "./" + name; executable(local) {
		return local, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s binary not found", name)
}

func executable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
