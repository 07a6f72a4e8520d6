package webhook

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	models "tenderplan/internal/domain/models/outline"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Endpoint is the webhook serving one generation kind.
type Endpoint struct {
	Kind models.GenerationKind `yaml:"kind"`
	Path string                `yaml:"path"`
}

type endpointFile struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

// Registry resolves generation kinds to webhook URLs.
type Registry struct {
	baseURL   string
	endpoints map[models.GenerationKind]Endpoint
	mu        sync.RWMutex
}

// NewRegistry loads the embedded endpoint table, then the optional override
// file at overridePath. Entries in the override replace embedded ones.
func NewRegistry(baseURL, overridePath string) (*Registry, error) {
	r := &Registry{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: make(map[models.GenerationKind]Endpoint),
	}

	data, err := configFiles.ReadFile("config/endpoints.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded endpoints: %w", err)
	}
	if err := r.load(data); err != nil {
		return nil, fmt.Errorf("failed to load embedded endpoints: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", overridePath, err)
		}
		if err := r.load(data); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", overridePath, err)
		}
	}

	return r, nil
}

func (r *Registry) load(data []byte) error {
	var file endpointFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range file.Endpoints {
		if !ep.Kind.Valid() {
			return fmt.Errorf("unknown generation kind %q", ep.Kind)
		}
		if ep.Path == "" {
			return fmt.Errorf("endpoint %s has no path", ep.Kind)
		}
		r.endpoints[ep.Kind] = ep
	}
	return nil
}

// Endpoint returns the endpoint of a kind.
func (r *Registry) Endpoint(kind models.GenerationKind) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[kind]
	return ep, ok
}

// URL returns the absolute webhook URL of a kind.
func (r *Registry) URL(kind models.GenerationKind) (string, error) {
	ep, ok := r.Endpoint(kind)
	if !ok {
		return "", fmt.Errorf("no webhook configured for %s", kind)
	}
	if u, err := url.Parse(ep.Path); err == nil && u.IsAbs() {
		return ep.Path, nil
	}
	if r.baseURL == "" {
		return "", fmt.Errorf("webhook base URL not configured for %s", kind)
	}
	return r.baseURL + "/" + strings.TrimLeft(ep.Path, "/"), nil
}
