//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/moodtrace/internal/errors"
)

// openFileNoFollow opens an export file for writing. Windows has no
// O_NOFOLLOW; ValidatePath has already rejected symlinked targets.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens an import file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewFileNotFound(path)
	}
	return f, err
}
