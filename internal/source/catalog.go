package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/manifest"
	"hivekeeper/internal/utils"
)

/**
 * Remote catalog of service packages
 * @property {string} URL - Base URL serving index.json and <name>.zip
 */
type Catalog struct {
	URL string
}

// catalogIndex is the document served at <url>/index.json
type catalogIndex struct {
	Services []manifest.Manifest `json:"services"`
}

func NewCatalog(url string) *Catalog {
	return &Catalog{URL: strings.TrimRight(url, "/")}
}

// List returns the manifests advertised by the catalog, sorted by name.
func (c *Catalog) List(ctx context.Context) ([]manifest.Manifest, error) {
	if c.URL == "" {
		return nil, errors.New("no catalog configured")
	}
	data, err := utils.GetBytes(ctx, c.URL+"/index.json", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog index: %w", err)
	}
	var idx catalogIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode catalog index: %w", err)
	}
	sort.Slice(idx.Services, func(i, j int) bool {
		return idx.Services[i].Name < idx.Services[j].Name
	})
	return idx.Services, nil
}

// Get looks a service up in the catalog index.
func (c *Catalog) Get(ctx context.Context, name string) (*manifest.Manifest, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, apperr.NewNotFound("service", name)
}

// Download fetches <name>.zip into a temporary file and returns its path.
func (c *Catalog) Download(ctx context.Context, name string) (string, error) {
	if c.URL == "" {
		return "", apperr.NewNotFound("package", name)
	}
	tmp, err := os.CreateTemp("", "hivekeeper-"+name+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	if err := utils.GetFile(ctx, c.URL+"/"+name+".zip", nil, path); err != nil {
		os.Remove(path)
		var se *utils.HTTPStatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", apperr.NewNotFound("package", name)
		}
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	return path, nil
}
