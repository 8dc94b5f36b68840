// Package ffmpeg provides FFmpeg binary detection and a thin process
// wrapper used by the pipeline supervisor.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// ErrBinaryNotFound indicates a required external tool is missing. The CLI
// layer maps it to exit code 127.
var ErrBinaryNotFound = errors.New("binary not found")

// FindBinary searches for an executable binary by name.
// Search order:
//  1. Environment variable (if envVar is non-empty and set)
//  2. ./name (current directory, useful for development)
//  3. name on PATH (via exec.LookPath)
//
// Each path is verified to exist and be executable before being returned.
func FindBinary(name string, envVar string) (string, error) {
	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" {
			if isExecutable(envPath) {
				return envPath, nil
			}
		}
	}

	localPath := "./" + name
	if isExecutable(localPath) {
		return localPath, nil
	}

	// LookPath already verifies executability.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, name)
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

// FindFFmpeg locates the ffmpeg binary, honoring LOOPCAST_FFMPEG_BINARY.
func FindFFmpeg() (string, error) {
	return FindBinary("ffmpeg", "LOOPCAST_FFMPEG_BINARY")
}

// versionRegex matches "6", "6.0", "n6.0-2-g..." style version strings.
var versionRegex = regexp.MustCompile(`^n?(\d+)(?:\.(\d+))?`)

// Version runs the binary with -version and returns its reported version
// string. Used at startup to log which engine the channel is running on.
func Version(ctx context.Context, ffmpegPath string) (string, error) {
	output, err := exec.CommandContext(ctx, ffmpegPath, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("probing ffmpeg version: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "ffmpeg version") {
			parts := strings.Fields(line)
			if len(parts) >= 3 && versionRegex.MatchString(parts[2]) {
				return parts[2], nil
			}
		}
	}
	return "", fmt.Errorf("failed to parse ffmpeg version output")
}
