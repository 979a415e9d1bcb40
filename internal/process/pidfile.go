package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadPIDFile reads the pid on the first line of a pidfile. Anything after the
// first line (start time, metadata) is ignored.
func ReadPIDFile(path string) (uint32, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.ParseUint(strings.TrimSpace(pidLine), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("pidfile %s: %w", path, err)
	}
	if pid == 0 {
		return 0, fmt.Errorf("pidfile %s: %w", path, ErrInvalidPID)
	}
	return uint32(pid), nil
}
