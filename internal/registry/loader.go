package registry

import (
	"fmt"
	"path/filepath"

	"workerd/internal/common/fsutil"
	"workerd/pkg/types"
)

// descriptorFile is the wrapped form, required for TOML ([[models]]).
type descriptorFile struct {
	Models []types.Descriptor `json:"models" yaml:"models" toml:"models"`
}

// Load reads worker descriptors from a .json, .yaml/.yml or .toml file. The
// file holds either a bare list or an object with a "models" list. Relative
// working directories are resolved against the file's directory.
func Load(path string) ([]types.Descriptor, error) {
	var f descriptorFile
	var list []types.Descriptor
	if err := fsutil.DecodeFile(path, &f); err == nil {
		list = f.Models
	} else if lerr := fsutil.DecodeFile(path, &list); lerr != nil {
		return nil, fmt.Errorf("load descriptors: %w", lerr)
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(filepath.Dir(p))
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	for i := range list {
		d := &list[i]
		if d.WorkingDir, err = resolveDir(base, d.WorkingDir); err != nil {
			return nil, err
		}
		if d.TokenizerWorkingDir, err = resolveDir(base, d.TokenizerWorkingDir); err != nil {
			return nil, err
		}
	}
	if err := Validate(list); err != nil {
		return nil, err
	}
	return list, nil
}

func resolveDir(base, dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	dir, err := fsutil.ExpandHome(dir)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	return filepath.Join(base, dir), nil
}

// Validate checks that every descriptor is named, unique and runnable.
func Validate(list []types.Descriptor) error {
	seen := make(map[string]struct{}, len(list))
	for i, d := range list {
		if d.Name == "" {
			return fmt.Errorf("descriptor %d: missing name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("descriptor %q: duplicate name", d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Executable == "" {
			return fmt.Errorf("descriptor %q: missing executable", d.Name)
		}
		if d.TokenizerPort < 0 || d.TokenizerPort > 65535 {
			return fmt.Errorf("descriptor %q: tokenizer_port %d out of range", d.Name, d.TokenizerPort)
		}
	}
	return nil
}
