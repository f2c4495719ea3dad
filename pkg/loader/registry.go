package loader

import (
	"context"
	"strings"
	"time"

	"github.com/slipwayhq/slipway-go/pkg/component"
	"github.com/slipwayhq/slipway-go/pkg/reference"
)

// RegistryLoader resolves reference.KindRegistry references by
// substituting `{publisher}`, `{name}`, `{version}` placeholders into a
// configured list of registry URL templates and trying each in turn —
// the template grammar settled on in DESIGN.md (pkg/loader) for the Open
// Question left unspecified by the distilled spec.
type RegistryLoader struct {
	templates []string
	fetch     *URLLoader
}

// NewRegistryLoader builds a RegistryLoader trying each of templates in
// order until one resolves successfully.
func NewRegistryLoader(templates []string, timeout time.Duration) *RegistryLoader {
	return &RegistryLoader{templates: templates, fetch: NewURLLoader(timeout)}
}

func (l *RegistryLoader) Identifier() string { return "registry" }

func (l *RegistryLoader) Load(ctx context.Context, ref reference.Reference) (*component.Loaded, error) {
	if ref.Kind != reference.KindRegistry {
		return nil, nil
	}
	var lastErr error
	for _, tmpl := range l.templates {
		url := expandTemplate(tmpl, ref)
		raw, err := l.fetch.fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		return component.FromArchive(ref, raw)
	}
	if lastErr == nil {
		return nil, nil
	}
	return nil, lastErr
}

func expandTemplate(tmpl string, ref reference.Reference) string {
	r := strings.NewReplacer(
		"{publisher}", ref.Publisher,
		"{name}", ref.Name,
		"{version}", ref.Version,
	)
	return r.Replace(tmpl)
}
