package remote

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListWithFallbackAllDirsFail(t *testing.T) {
	broken := errors.New("550 permission denied")
	_, err := listWithFallback([]string{"/", ".", ""}, func(string) ([]FileInfo, error) {
		return nil, broken
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, broken)
}

func TestListWithFallbackEmptyAnswerIsNotAnError(t *testing.T) {
	calls := 0
	files, err := listWithFallback([]string{"/", "."}, func(dir string) ([]FileInfo, error) {
		calls++
		if dir == "/" {
			return nil, errors.New("550 no such directory")
		}
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, files)
	assert.Equal(t, 2, calls)
}

func TestListWithFallbackFirstNonEmptyWins(t *testing.T) {
	files, err := listWithFallback([]string{"/", "."}, func(dir string) ([]FileInfo, error) {
		if dir == "." {
			return []FileInfo{{Name: "tarif.csv"}}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "tarif.csv", files[0].Name)
}
