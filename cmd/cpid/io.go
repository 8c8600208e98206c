package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/samcharles93/cpid/internal/cp"
)

// readTensor decodes a CP tensor from path, or stdin when path is "-".
func readTensor(path string) (*cp.Tensor, error) {
	if path == "" || path == "-" {
		return cp.Read(bufio.NewReader(os.Stdin))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	t, err := cp.Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// writeOutput runs fn against path, or stdout when path is "" or "-".
func writeOutput(path string, fn func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	return w.Flush()
}
