package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	defaultFile = "tdpctl.pid"
)

// File guards against a second daemon instance driving the same hardware.
type File struct {
	path string
}

// New returns a pid file at path; an empty path uses the temp directory.
func New(path string) *File {
	if path == "" {
		path = filepath.Join(os.TempDir(), defaultFile)
	}
	return &File{path: path}
}

// Path returns the location of the pid file.
func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID to the PID file. It fails with
// ErrAlreadyRunning when the file names a live process other than us.
func (f *File) Write() error {
	errFactory := errors.New()
	self := os.Getpid()

	if bytes, err := os.ReadFile(f.path); err == nil {
		// PID file exists, check if the process is running
		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && pid != self {
			alive, err := process.PidExists(int32(pid))
			if err != nil {
				return errFactory.Wrap(errors.ErrInternal, err)
			}
			if alive {
				return errFactory.WithData(errors.ErrAlreadyRunning, pid)
			}
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(self)), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
