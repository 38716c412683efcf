// Package fsreader provides the default FileReader adapter: a thin
// os.ReadFile wrapper, the only concrete implementation the dependency
// builder and test discovery need outside of tests (spec.md §4.E, §4.J).
package fsreader

import (
	"fmt"
	"os"

	domainfsreader "github.com/danbao/testring-sub000/internal/domain/fsreader"
)

// OS reads files directly from the local filesystem.
type OS struct{}

func (OS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fsreader: read %s: %w", path, err)
	}
	return data, nil
}

var _ domainfsreader.FileReader = OS{}
