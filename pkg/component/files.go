package component

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

var errMissingDefinition = errors.New("archive missing " + DefinitionFile)

// Files is the abstract handle over a component's archive contents, per
// §3: existence checks and byte/text reads by name, plus the reference
// that produced this handle. The in-memory handle returns its stored
// slices rather than copies, so callers must treat the returned slices
// as read-only; the directory handle reads the file on every call.
type Files interface {
	Exists(name string) bool
	TryGetText(name string) (string, bool, error)
	TryGetBin(name string) ([]byte, bool, error)
	Reference() reference.Reference
}

// memFiles is the in-memory implementation, backing both the decoded
// contents of a fetched tarball and synthetic test fixtures.
type memFiles struct {
	ref     reference.Reference
	entries map[string][]byte
}

// NewMemFiles constructs a Files handle directly from a name->bytes map;
// entries are taken by reference, not copied.
func NewMemFiles(ref reference.Reference, entries map[string][]byte) Files {
	return &memFiles{ref: ref, entries: entries}
}

func (m *memFiles) Exists(name string) bool {
	_, ok := m.entries[name]
	return ok
}

func (m *memFiles) TryGetText(name string) (string, bool, error) {
	b, ok := m.entries[name]
	if !ok {
		return "", false, nil
	}
	return string(b), true, nil
}

func (m *memFiles) TryGetBin(name string) ([]byte, bool, error) {
	b, ok := m.entries[name]
	return b, ok, nil
}

func (m *memFiles) Reference() reference.Reference { return m.ref }

// dirFiles backs onto a directory on disk — used by the local-path
// loader when the reference points at an already-unpacked component.
type dirFiles struct {
	ref  reference.Reference
	root string
}

// NewDirFiles constructs a Files handle rooted at dir.
func NewDirFiles(ref reference.Reference, dir string) Files {
	return &dirFiles{ref: ref, root: dir}
}

func (d *dirFiles) path(name string) string { return filepath.Join(d.root, filepath.Clean("/"+name)) }

func (d *dirFiles) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

func (d *dirFiles) TryGetText(name string) (string, bool, error) {
	b, ok, err := d.TryGetBin(name)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}

func (d *dirFiles) TryGetBin(name string) ([]byte, bool, error) {
	b, err := os.ReadFile(d.path(name))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, slerr.Internal("failed to read component file", err).WithDetail("name", name)
	}
	return b, true, nil
}

func (d *dirFiles) Reference() reference.Reference { return d.ref }

// LoadTarGz decodes a gzip-compressed tarball (the component archive
// layout of §6) into an in-memory Files handle, using the standard
// library's archive/tar + compress/gzip.
func LoadTarGz(ref reference.Reference, raw []byte) (Files, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, slerr.ComponentLoadFailed(ref.String(), []slerr.LoaderFailure{
			{LoaderID: "tar", Err: err},
		})
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	entries := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, slerr.ComponentLoadFailed(ref.String(), []slerr.LoaderFailure{
				{LoaderID: "tar", Err: err},
			})
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		buf := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, buf); err != nil {
			return nil, slerr.ComponentLoadFailed(ref.String(), []slerr.LoaderFailure{
				{LoaderID: "tar", Err: err},
			})
		}
		entries[filepath.Clean(hdr.Name)] = buf
	}

	if _, ok := entries[DefinitionFile]; !ok {
		return nil, slerr.ComponentLoadFailed(ref.String(), []slerr.LoaderFailure{
			{LoaderID: "tar", Err: errMissingDefinition},
		})
	}

	return NewMemFiles(ref, entries), nil
}
