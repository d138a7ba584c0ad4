// Copyright 2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

/*
Package rwfile rewrites files through a golang.org/x/text/transform.Transformer.

The transformer receives the whole content of the file at once (as with transform.Bytes),
and the result replaces the previous content either in place (InPlace) or by atomically
renaming a temporary file over the original (Atomic).

In both cases the file is left untouched when the transformer fails.
*/
package rwfile

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/transform"
)

// InPlace opens filename for reading and writing, transforms its content and
// writes the result back from offset zero. The file is truncated to the length of
// the new content, so no stale bytes survive when the new content is shorter.
func InPlace(filename string, t transform.Transformer) error {
	f, err := os.OpenFile(filename, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	dst, _, err := transform.Bytes(t, src)
	if err != nil {
		return err
	}
	if bytes.Equal(src, dst) {
		return nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(dst); err != nil {
		return err
	}
	if err := f.Truncate(int64(len(dst))); err != nil {
		return err
	}
	return f.Close()
}

// Atomic reads the content of an existing file, passes it through a transformer and writes it back atomically.
func Atomic(filename string, t transform.Transformer) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	dst, _, err := transform.Bytes(t, src)
	if err != nil {
		return err
	}
	return WriteFile(filename, dst, 0)
}

// Stdio reads everything from r, transforms it and writes the result to w.
func Stdio(t transform.Transformer, w io.Writer, r io.Reader) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dst, _, err := transform.Bytes(t, src)
	if err != nil {
		return err
	}
	_, err = w.Write(dst)
	return err
}

// Writer returns an AtomicWriter that writes data to a temporary file
// which gets renamed atomically as filename upon Commit.
// If filename already exists its permissions are preserved, otherwise perm is used.
func Writer(filename string, perm os.FileMode) (*AtomicWriter, error) {
	out, err := os.CreateTemp(filepath.Dir(filename), ".*~")
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(filename); err != nil {
		if !os.IsNotExist(err) {
			out.Close()
			os.Remove(out.Name())
			return nil, err
		}
	} else {
		perm = st.Mode()
	}
	if err := os.Chmod(out.Name(), perm); err != nil {
		out.Close()
		os.Remove(out.Name())
		return nil, err
	}

	return &AtomicWriter{out, filename}, nil
}

// An AtomicWriter is a temporary file that replaces its target on Commit.
type AtomicWriter struct {
	*os.File
	filename string
}

// Close discards the temporary file, unless it has been committed.
func (a *AtomicWriter) Close() error {
	defer os.Remove(a.Name())
	return a.File.Close()
}

// Commit renames the temporary file over the target.
func (a *AtomicWriter) Commit() error {
	defer a.Close()
	if err := a.File.Sync(); err != nil {
		return err
	}
	return os.Rename(a.Name(), a.filename)
}

// WriteFile is a drop-in replacement for os.WriteFile that writes the file atomically.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	w, err := Writer(filename, perm)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Commit()
}
