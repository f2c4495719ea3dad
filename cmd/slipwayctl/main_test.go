package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRunMissingRigFlag(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when -rig is omitted")
	}
}

func TestRunFailsOnUnresolvableComponent(t *testing.T) {
	dir := t.TempDir()
	rigPath := filepath.Join(dir, "rig.json")
	rig := `{
		"name": "sample", "publisher": "acme", "version": "1.0.0",
		"rigging": {"components": {"a": {
			"component": {"registry": {"publisher": "acme", "name": "missing", "version": "1.0.0"}},
			"input": {}
		}}}
	}`
	if err := os.WriteFile(rigPath, []byte(rig), 0o600); err != nil {
		t.Fatalf("write rig: %v", err)
	}

	err := run(context.Background(), []string{"-rig", rigPath})
	if err == nil {
		t.Fatalf("expected an error for a component no loader can resolve")
	}
}

func TestSetFlagParsing(t *testing.T) {
	f := setFlag{}
	if err := f.Set("handle=" + `{"a":1}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if string(f["handle"]) != `{"a":1}` {
		t.Fatalf("unexpected stored value: %s", f["handle"])
	}
	if err := f.Set("no-equals-sign"); err == nil {
		t.Fatalf("expected error for a value with no '='")
	}
	if err := f.Set("handle=not-json"); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
