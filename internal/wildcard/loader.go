package wildcard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir loads every *.txt file under dir as one pool. The pool name is the
// uppercased filename without extension; each non-blank line is one value,
// lines starting with # are comments. Files yielding no values are skipped.
func LoadDir(dir string, opts ...PoolOption) (map[string]*Pool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wildcard: read dir: %w", err)
	}

	pools := make(map[string]*Pool)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("wildcard: read %s: %w", e.Name(), err)
		}
		values := parseLines(string(data))
		if len(values) == 0 {
			continue
		}
		name := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		pools[name] = NewPool(name, values, opts...)
	}
	return pools, nil
}

func parseLines(data string) []string {
	var values []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	return values
}
