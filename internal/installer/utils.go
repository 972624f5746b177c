package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"rig/internal/logger"
)

// detectShell figures out which shell the user runs by reading the SHELL variable.
// It supports zsh and bash and falls back to bash, the default login shell on Debian.
func detectShell(shell string) string {
	logger.Debug("[DEBUG] Detected shell environment: %s\n", shell)

	if strings.Contains(filepath.Base(shell), "zsh") {
		return "zsh"
	}
	return "bash"
}

// ensureWritableDir creates dir if needed and checks the current user can write to it.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	return nil
}

// moveFile replaces dst with src. A rename within one filesystem is atomic; across
// filesystems the content is copied to a temp file next to dst and renamed over it,
// so dst is never observed half-written.
func moveFile(src, dst string, mode os.FileMode) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("rename failed: %w", err)
	}

	logger.Debug("[DEBUG] %s and %s are on different filesystems, copying\n", src, dst)
	tmp, err := copyFile(src, filepath.Dir(dst), mode)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename failed: %w", err)
	}
	if err := os.Remove(src); err != nil {
		logger.Warn("[WARN] Failed to remove %s after copy: %v\n", src, err)
	}
	return nil
}

// copyFile copies src into a new temp file inside dir and returns its path.
// The temp file is removed on any failure.
func copyFile(src, dir string, mode os.FileMode) (path string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open source failed: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, "."+filepath.Base(src)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create target failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(out.Name())
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy failed: %w", err)
	}
	if err = out.Chmod(mode); err != nil {
		return "", fmt.Errorf("chmod failed: %w", err)
	}
	if err = out.Close(); err != nil {
		return "", fmt.Errorf("close failed: %w", err)
	}
	return out.Name(), nil
}
