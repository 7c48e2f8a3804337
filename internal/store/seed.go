package store

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	appLog "teamcal/internal/log"
	"teamcal/internal/model"
)

// seedFile is the fixture layout:
//
//	collections:
//	  events:
//	    - id: e1
//	      title: Kickoff
//	      date: 2025-03-15
type seedFile struct {
	Collections map[string][]map[string]any `yaml:"collections"`
}

// LoadSeed creates every record of the YAML fixture at path in st. Records
// with an id replace what is stored under that id, so seeding is repeatable.
// It returns the number of records written.
func LoadSeed(ctx context.Context, st Store, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return 0, fmt.Errorf("parse seed %s: %w", path, err)
	}

	names := make([]string, 0, len(seed.Collections))
	for name := range seed.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		if err := checkCollection(name); err != nil {
			return n, fmt.Errorf("seed %s: %w", path, err)
		}
		for _, rec := range seed.Collections[name] {
			if _, err := st.Create(ctx, name, model.Fields(rec)); err != nil {
				return n, fmt.Errorf("seed %s: %w", name, err)
			}
			n++
		}
	}
	appLog.Info("store: seed loaded", "path", path, "records", n)
	return n, nil
}
