package shlog

import (
	"io"
	"os"
)

// newWriter opens filepath in append mode, creating it when missing.
// An empty filepath resolves to os.Stdout.
func newWriter(filepath string) (io.Writer, error) {
	if filepath == "" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}
