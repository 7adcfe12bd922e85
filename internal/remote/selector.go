package remote

import (
	"path"
	"sort"
)

// Match reports whether name passes the include/exclude glob pair. Patterns
// use case-sensitive `*`/`?` wildcards; an empty include matches everything.
// Malformed patterns match nothing (include) or exclude nothing (exclude).
func Match(name, include, exclude string) bool {
	if include != "" {
		ok, err := path.Match(include, name)
		if err != nil || !ok {
			return false
		}
	}
	if exclude != "" {
		if ok, err := path.Match(exclude, name); err == nil && ok {
			return false
		}
	}
	return true
}

// Select returns the subset of files matching the patterns, sorted newest
// first and truncated to max when max > 0. Interactive preview and automatic
// batch selection both go through here, so a given configuration always
// yields the same candidate set. The input slice is not mutated.
func Select(files []FileInfo, include, exclude string, max int) []FileInfo {
	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		if Match(f.Name, include, exclude) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModTime.After(out[j].ModTime)
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
