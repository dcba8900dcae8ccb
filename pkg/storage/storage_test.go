package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		uri  string
		want Location
	}{
		{"s3://race-config/routes/2024.yaml", Location{Scheme: "s3", Bucket: "race-config", Key: "routes/2024.yaml"}},
		{"gs://race-config/routes.json", Location{Scheme: "gs", Bucket: "race-config", Key: "routes.json"}},
		{"/etc/racebeacon/routes.yaml", Location{Scheme: "file", Bucket: "/etc/racebeacon", Key: "routes.yaml"}},
	}
	for _, tc := range cases {
		got, err := ParseLocation(tc.uri)
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "s3://bucket-only", "gs:///key", "s3://bucket/"} {
		_, err := ParseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalStorageDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.json"), []byte(`{"red": []}`), 0o600))

	reader, err := Open(context.Background(), Location{Scheme: "file", Bucket: dir, Key: "routes.json"}, Options{})
	require.NoError(t, err)
	defer reader.Close()

	blob, err := reader.Download(context.Background(), "routes.json")
	require.NoError(t, err)
	defer blob.Reader.Close()

	data, err := io.ReadAll(blob.Reader)
	require.NoError(t, err)
	assert.Equal(t, `{"red": []}`, string(data))
	assert.Equal(t, int64(len(data)), blob.Size)
	assert.Contains(t, blob.ContentType, "json")

	_, err = reader.Download(context.Background(), "missing.json")
	assert.Error(t, err)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), Location{Scheme: "ftp"}, Options{})
	assert.Error(t, err)
}
