package loader

import (
	"context"
	"os"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// LocalLoader resolves reference.KindLocal references to a filesystem
// path: either a directory already containing slipway_component.json, or
// a .tar.gz archive.
type LocalLoader struct{}

func NewLocalLoader() *LocalLoader { return &LocalLoader{} }

func (l *LocalLoader) Identifier() string { return "local" }

func (l *LocalLoader) Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	if ref.Kind != reference.KindLocal {
		return nil, nil
	}
	info, err := os.Stat(ref.Path)
	if os.IsNotExist(err) {
		return nil, slerr.New(slerr.CodeComponentLoadFailed, "local path does not exist").WithDetail("path", ref.Path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		files := component.NewDirFiles(ref, ref.Path)
		return component.FromFiles(files)
	}

	raw, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, err
	}
	return component.FromArchive(ref, raw)
}
