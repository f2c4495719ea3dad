package component

import (
	"github.com/slipwayhq/slipway-go/pkg/reference"
	"github.com/slipwayhq/slipway-go/pkg/slerr"
)

// Loaded bundles a compiled Definition with the Files handle its bytes
// came from. This is the unit the cache stores and the unit a runner's
// can_run/run receives.
type Loaded struct {
	Definition *Definition
	Files      Files
}

// Reference returns the originating reference of the backing Files
// handle, which is always equal to the cache key this Loaded was stored
// under.
func (l *Loaded) Reference() reference.Reference { return l.Files.Reference() }

// FromArchive parses a gzip-tarball's slipway_component.json and wraps
// both it and the decoded archive contents into a Loaded value in one
// step.
func FromArchive(ref reference.Reference, raw []byte) (*Loaded, error) {
	files, err := LoadTarGz(ref, raw)
	if err != nil {
		return nil, err
	}
	return FromFiles(files)
}

// FromFiles parses files' definition file into a Loaded value.
func FromFiles(files Files) (*Loaded, error) {
	raw, ok, err := files.TryGetBin(DefinitionFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, slerr.ComponentLoadFailed(files.Reference().String(), []slerr.LoaderFailure{
			{LoaderID: "files", Err: errMissingDefinition},
		})
	}
	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, err
	}
	return &Loaded{Definition: def, Files: files}, nil
}
