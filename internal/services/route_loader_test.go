package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"racebeacon/internal/models"
	"racebeacon/pkg/logger"
	"racebeacon/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoutesBuiltin(t *testing.T) {
	for _, source := range []string{"", RouteSourceBuiltin} {
		routes, err := LoadRoutes(context.Background(), source, storage.Options{}, logger.Discard())
		require.NoError(t, err)
		assert.Equal(t, models.DefaultRoutes(), routes)
	}
}

func TestLoadRoutesFromLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"marathon": [[22.3, 114.1], [22.31, 114.12]]}`), 0o600))

	routes, err := LoadRoutes(context.Background(), path, storage.Options{}, logger.Discard())
	require.NoError(t, err)
	require.Contains(t, routes, "marathon")
	assert.Equal(t, [][]float64{{22.3, 114.1}, {22.31, 114.12}}, routes["marathon"])
}

func TestLoadRoutesMissingFile(t *testing.T) {
	_, err := LoadRoutes(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), storage.Options{}, logger.Discard())
	assert.Error(t, err)
}

func TestParseRoutesYAML(t *testing.T) {
	doc := []byte(`
red:
  - [22.3964, 114.1095]
  - [22.4000, 114.1150]
blue:
  - [22.3950, 114.1100]
`)
	routes, err := ParseRoutes(doc)
	require.NoError(t, err)
	assert.Len(t, routes, 2)
	assert.Len(t, routes["red"], 2)
}

func TestParseRoutesRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":        `{}`,
		"not a map":    `[1, 2, 3]`,
		"no points":    `{"red": []}`,
		"short point":  `{"red": [[22.3]]}`,
		"out of range": `{"red": [[95, 114.1]]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(doc))
			assert.Error(t, err)
		})
	}
}
