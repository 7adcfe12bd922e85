package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	assert.True(t, Match("tarif_2024.csv", "tarif_*.csv", ""))
	assert.False(t, Match("tarif_2024.csv", "tarif_*.csv", "*2024*"))
	assert.True(t, Match("anything.txt", "", ""))
	assert.False(t, Match("readme.txt", "*.csv", ""))
	// patterns are case-sensitive
	assert.False(t, Match("TARIF.CSV", "tarif*", ""))
	// a malformed include matches nothing
	assert.False(t, Match("x.csv", "[", ""))
	// a malformed exclude excludes nothing
	assert.True(t, Match("x.csv", "*.csv", "["))
}

func TestSelectNewestFirstAndTruncated(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	files := []FileInfo{
		{Name: "old.csv", ModTime: base},
		{Name: "new.csv", ModTime: base.Add(48 * time.Hour)},
		{Name: "mid.csv", ModTime: base.Add(24 * time.Hour)},
		{Name: "skip.txt", ModTime: base.Add(72 * time.Hour)},
	}

	got := Select(files, "*.csv", "", 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "new.csv", got[0].Name)
	assert.Equal(t, "mid.csv", got[1].Name)

	// max <= 0 means no truncation
	assert.Len(t, Select(files, "*.csv", "", 0), 3)
}
