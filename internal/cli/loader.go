package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/journeysim/internal/compiler"
	"github.com/roach88/journeysim/internal/config"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/trigger"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// SpecSet is everything loaded from a set of spec paths.
type SpecSet struct {
	Journeys []*journey.JourneySpecification // sorted by id
	Triggers []trigger.RegisteredTrigger     // file order, then declaration order
	Files    []string
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// isSpecFile reports whether name has a spec extension.
func isSpecFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue", ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadSpecs loads journeys and triggers from files and directories.
// Directories are walked recursively and non-spec files skipped. YAML and
// JSON files hold one journey; CUE files may hold journeys and triggers.
//
// With LoadModeFailFast the first error returns a nil set. With
// LoadModeCollectAll the set holds everything that did load.
func LoadSpecs(mode LoadMode, paths ...string) (*SpecSet, []error) {
	var errs []error
	files, err := specFiles(paths)
	if err != nil {
		return nil, []error{err}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoSpecs, Message: fmt.Sprintf("no spec files found in %s", strings.Join(paths, ", "))}}
	}

	set := &SpecSet{
		Journeys: []*journey.JourneySpecification{},
		Triggers: []trigger.RegisteredTrigger{},
		Files:    files,
	}
	for _, path := range files {
		if err := set.loadFile(path); err != nil {
			if mode == LoadModeFailFast {
				return nil, []error{err}
			}
			errs = append(errs, err)
		}
	}

	sort.SliceStable(set.Journeys, func(i, j int) bool {
		return set.Journeys[i].ID < set.Journeys[j].ID
	})
	return set, errs
}

func (s *SpecSet) loadFile(path string) error {
	if strings.ToLower(filepath.Ext(path)) == ".cue" {
		bundle, err := compiler.CompileFile(path)
		if err != nil {
			return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error(), Err: err}
		}
		s.Journeys = append(s.Journeys, bundle.Journeys...)
		s.Triggers = append(s.Triggers, bundle.Triggers...)
		return nil
	}

	spec, err := journey.LoadFile(path)
	if err != nil {
		return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error(), Err: err}
	}
	s.Journeys = append(s.Journeys, spec)
	return nil
}

// specFiles expands paths into a sorted, de-duplicated file list.
func specFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "spec path not found", Err: err}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Path: p, Message: err.Error(), Err: err}
		}

		if !info.IsDir() {
			if !isSpecFile(p) {
				return nil, &LoadError{Code: ErrCodeLoadFailed, Path: p, Message: "unsupported spec file extension"}
			}
			add(p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSpecFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Path: p, Message: err.Error(), Err: err}
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// loadForRun loads the spec paths plus configured trigger files and
// rejects the set if it does not validate.
func loadForRun(cfg *config.Config, paths []string) (*SpecSet, error) {
	all := append(append([]string{}, paths...), cfg.Triggers.Files...)
	set, errs := LoadSpecs(LoadModeFailFast, all...)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(set.Journeys) == 0 {
		return nil, &LoadError{Code: ErrCodeNoSpecs, Message: "no journeys found"}
	}
	if verrs := compiler.Validate(set.Journeys, set.Triggers); len(verrs) > 0 {
		return nil, fmt.Errorf("specs failed validation: %w", verrs[0])
	}
	return set, nil
}

// buildRegistry registers the built-in triggers (when configured) followed
// by the loaded ones.
func buildRegistry(cfg *config.Config, set *SpecSet) (*trigger.Registry, error) {
	reg := trigger.NewRegistry(trigger.WithSeed(cfg.Seed))
	if cfg.Triggers.Defaults {
		for _, t := range trigger.DefaultTriggers() {
			if _, err := reg.RegisterSpec(t); err != nil {
				return nil, fmt.Errorf("register default trigger: %w", err)
			}
		}
	}
	for _, t := range set.Triggers {
		if _, err := reg.RegisterSpec(t); err != nil {
			return nil, fmt.Errorf("register trigger %s: %w", t.ID, err)
		}
	}
	return reg, nil
}
