package journey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode parses a journey from YAML or JSON (JSON is a YAML subset, but a
// leading '{' selects encoding/json so numbers keep their exact form).
// Unknown fields are rejected. The result is validated.
func Decode(data []byte) (*JourneySpecification, error) {
	var spec JourneySpecification

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode journey json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("decode journey yaml: %w", err)
		}
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// LoadFile reads one journey file (.yaml, .yml or .json).
func LoadFile(path string) (*JourneySpecification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journey %s: %w", path, err)
	}
	spec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// LoadDir loads every journey file in dir, sorted by journey id.
// Duplicate journey ids across files are an error.
func LoadDir(dir string) ([]*JourneySpecification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read journey dir: %w", err)
	}

	var specs []*JourneySpecification
	origin := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !isSpecFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		spec, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := origin[spec.ID]; dup {
			return nil, fmt.Errorf("journey %q defined in both %s and %s", spec.ID, prev, path)
		}
		origin[spec.ID] = path
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, k int) bool { return specs[i].ID < specs[k].ID })
	return specs, nil
}

func isSpecFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
