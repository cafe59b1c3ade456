package ledger

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// Fixture is the on-disk shape of a member seed file.
type Fixture struct {
	Members []claims.Member `yaml:"members"`
}

// LoadFixtures reads every YAML file matching pattern (doublestar syntax,
// e.g. "testdata/**/*.yaml") and returns the members they define, in file
// then declaration order. A member defined twice keeps its last definition.
func LoadFixtures(pattern string) ([]claims.Member, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixture files match %s", pattern)
	}
	sort.Strings(paths)

	var (
		members []claims.Member
		index   = map[string]int{}
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var f Fixture
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, m := range f.Members {
			if m.ID == "" {
				return nil, fmt.Errorf("%s: member without member_id", path)
			}
			if i, ok := index[m.ID]; ok {
				members[i] = m
				continue
			}
			index[m.ID] = len(members)
			members = append(members, m)
		}
	}
	return members, nil
}
