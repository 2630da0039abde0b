package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/arkvault/internal/apperr"
)

func TestResolveAlias(t *testing.T) {
	root := t.TempDir()
	r := Resolver{Root: root, Aliases: DefaultAliases()}

	loc, err := r.Resolve("Tags")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc.Kind != KindFile || !loc.Fixed {
		t.Errorf("loc = %+v", loc)
	}
	if loc.Path != filepath.Join(root, ArkFolder, "user", "tags") {
		t.Errorf("path = %s", loc.Path)
	}

	loc, err = r.Resolve("properties")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if loc.Kind != KindFolder {
		t.Errorf("kind = %s, want folder", loc.Kind)
	}
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{Root: dir}

	loc, err := r.Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve dir: %v", err)
	}
	if loc.Kind != KindFolder || loc.Fixed {
		t.Errorf("dir loc = %+v", loc)
	}

	p := filepath.Join(dir, "new-storage")
	loc, err = r.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve missing: %v", err)
	}
	if loc.Kind != KindFile {
		t.Errorf("missing path kind = %s, want file", loc.Kind)
	}
}

func TestResolveRejects(t *testing.T) {
	r := Resolver{Root: t.TempDir(), Aliases: map[string]Alias{"evil": {Path: "../../etc", Kind: KindFolder}}}
	if _, err := r.Resolve("evil"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("escape err = %v", err)
	}
	if _, err := r.Resolve(" "); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("blank err = %v", err)
	}
}

func TestOpenKindOverride(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{Root: dir, Aliases: DefaultAliases()}

	folder := KindFolder
	s, err := r.Open(filepath.Join(dir, "explicit"), &folder)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Kind() != KindFolder {
		t.Errorf("kind = %s, want folder", s.Kind())
	}

	file := KindFile
	s, err = r.Open("stats", &file)
	if err != nil {
		t.Fatalf("Open alias: %v", err)
	}
	if s.Kind() != KindFolder {
		t.Error("alias kind must not be overridden")
	}
}

func TestOpenFileKindOnDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "d"), 0o755); err != nil {
		t.Fatal(err)
	}
	file := KindFile
	_, err := Resolver{Root: dir}.Open(filepath.Join(dir, "d"), &file)
	if !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("err = %v, want ErrInvalidPath", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Folder"); err != nil || k != KindFolder {
		t.Errorf("ParseKind(Folder) = %v, %v", k, err)
	}
	if _, err := ParseKind("bucket"); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("err = %v", err)
	}
}
