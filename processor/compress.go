package processor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

// WriteCompressed writes a snappy framed file. The content is produced by
// write into path.part, which is renamed to path only when everything was
// flushed.
func WriteCompressed(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	partial := path + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}

	sw := snappy.NewBufferedWriter(file)
	writeErr := write(sw)
	if writeErr == nil {
		writeErr = sw.Close()
	}
	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to write %s: %w", path, writeErr)
	}

	return os.Rename(partial, path)
}

// OpenCompressed opens a snappy framed file for reading. The caller closes
// the returned file.
func OpenCompressed(path string) (io.Reader, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return snappy.NewReader(file), file, nil
}
