package services

import (
	"context"
	"fmt"
	"io"

	"racebeacon/internal/models"
	"racebeacon/internal/utils"
	"racebeacon/pkg/logger"
	"racebeacon/pkg/storage"

	"gopkg.in/yaml.v3"
)

// RouteSourceBuiltin selects the compiled-in race routes.
const RouteSourceBuiltin = "builtin"

const maxRouteBlobSize = 1 << 20

// LoadRoutes reads the course geometry once at startup. source is
// "builtin", a local path, s3://bucket/key or gs://bucket/key; JSON and YAML
// documents are both accepted.
func LoadRoutes(ctx context.Context, source string, opts storage.Options, log *logger.Logger) (models.RouteConfig, error) {
	if source == "" || source == RouteSourceBuiltin {
		return models.DefaultRoutes(), nil
	}

	location, err := storage.ParseLocation(source)
	if err != nil {
		return nil, err
	}

	reader, err := storage.Open(ctx, location, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open route source: %w", err)
	}
	defer reader.Close()

	routes, err := readRoutes(ctx, reader, location.Key)
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"source": source,
		"routes": len(routes),
	}).Info("Routes loaded")

	return routes, nil
}

func readRoutes(ctx context.Context, reader storage.BlobReader, key string) (models.RouteConfig, error) {
	blob, err := reader.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer blob.Reader.Close()

	data, err := io.ReadAll(io.LimitReader(blob.Reader, maxRouteBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read route source: %w", err)
	}
	if len(data) > maxRouteBlobSize {
		return nil, fmt.Errorf("route source exceeds %d bytes", maxRouteBlobSize)
	}

	return ParseRoutes(data)
}

// ParseRoutes decodes a route document and checks every point is a valid
// [lat, lng] pair.
func ParseRoutes(data []byte) (models.RouteConfig, error) {
	var routes models.RouteConfig
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("failed to parse routes: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("route document defines no routes")
	}

	for name, points := range routes {
		if len(points) == 0 {
			return nil, fmt.Errorf("route %q has no points", name)
		}
		for i, point := range points {
			if len(point) != 2 {
				return nil, fmt.Errorf("route %q point %d: expected [lat, lng]", name, i)
			}
			if !utils.IsValidCoordinates(point[0], point[1]) {
				return nil, fmt.Errorf("route %q point %d: coordinates out of range", name, i)
			}
		}
	}

	return routes, nil
}
