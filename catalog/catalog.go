// Package catalog loads and validates the destination and plan catalog the
// recommendation engine ranks.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"travelkit/core"
)

// ErrInvalidCatalog is returned when catalog records fail validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

//go:embed data/default.yaml
var defaultYAML []byte

// Catalog holds read-only destination and plan records.
type Catalog struct {
	Destinations []core.Destination `yaml:"destinations" json:"destinations"`
	Plans        []core.Plan        `yaml:"plans" json:"plans"`
}

// Provider supplies catalog records to the service.
type Provider interface {
	Destinations(ctx context.Context) ([]core.Destination, error)
	Plans(ctx context.Context) ([]core.Plan, error)
}

// Parse decodes a YAML catalog and validates it.
func Parse(r io.Reader) (*Catalog, error) {
	c, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

// decode rejects keys the catalog types do not declare. Empty input is an empty catalog.
func decode(r io.Reader) (Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, err
	}
	return c, nil
}

// LoadFile reads a single YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadDir merges every *.yaml and *.yml file in dir, in lexical order.
func LoadDir(dir string) (*Catalog, error) {
	slog.Info("loading catalog from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no catalog files in %s", ErrInvalidCatalog, dir)
	}

	merged := &Catalog{}
	for _, file := range files {
		data, err := os.ReadFile(file) // #nosec G304 - globbed from configured directory
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", file, err)
		}
		part, err := decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode catalog %s: %w", file, err)
		}
		merged.Destinations = append(merged.Destinations, part.Destinations...)
		merged.Plans = append(merged.Plans, part.Plans...)
		slog.Debug("loaded catalog file", "file", file,
			"destinations", len(part.Destinations), "plans", len(part.Plans))
	}
	if err := merged.normalize(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Load reads a catalog from a file or a directory. An empty path returns the
// embedded default catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns a copy of the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(bytes.NewReader(defaultYAML))
		if err != nil {
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog.Clone()
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		Destinations: make([]core.Destination, len(c.Destinations)),
		Plans:        make([]core.Plan, len(c.Plans)),
	}
	for i, d := range c.Destinations {
		d.Tags = append([]string(nil), d.Tags...)
		out.Destinations[i] = d
	}
	for i, p := range c.Plans {
		p.Tags = append([]string(nil), p.Tags...)
		out.Plans[i] = p
	}
	return out
}

// Destination looks up a destination by id.
func (c *Catalog) Destination(id string) (core.Destination, bool) {
	for _, d := range c.Destinations {
		if d.ID == id {
			return d, true
		}
	}
	return core.Destination{}, false
}

// normalize fills defaults on every record and validates ids.
func (c *Catalog) normalize() error {
	var errs []string
	destIDs := make(map[string]struct{}, len(c.Destinations))
	for i, d := range c.Destinations {
		d = d.Normalize()
		c.Destinations[i] = d
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("destinations[%d]: id is required", i))
			continue
		}
		if _, dup := destIDs[d.ID]; dup {
			errs = append(errs, fmt.Sprintf("destinations[%d]: duplicate id %q", i, d.ID))
		}
		destIDs[d.ID] = struct{}{}
	}
	planIDs := make(map[string]struct{}, len(c.Plans))
	for i, p := range c.Plans {
		p = p.Normalize()
		c.Plans[i] = p
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("plans[%d]: id is required", i))
			continue
		}
		if _, dup := planIDs[p.ID]; dup {
			errs = append(errs, fmt.Sprintf("plans[%d]: duplicate id %q", i, p.ID))
		}
		planIDs[p.ID] = struct{}{}
		if p.DestinationID != "" {
			if _, ok := destIDs[p.DestinationID]; !ok {
				errs = append(errs, fmt.Sprintf("plans[%d]: unknown destination %q", i, p.DestinationID))
			}
		}
		if p.Budget.Max > 0 && p.Budget.Min > p.Budget.Max {
			errs = append(errs, fmt.Sprintf("plans[%d]: budget min exceeds max", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return nil
}

// Static serves a fixed catalog.
type Static struct {
	catalog *Catalog
}

// NewStatic wraps c. The catalog is copied so later changes by the caller are not observed.
func NewStatic(c *Catalog) *Static {
	if c == nil {
		c = &Catalog{}
	}
	return &Static{catalog: c.Clone()}
}

func (s *Static) Destinations(_ context.Context) ([]core.Destination, error) {
	return s.catalog.Clone().Destinations, nil
}

func (s *Static) Plans(_ context.Context) ([]core.Plan, error) {
	return s.catalog.Clone().Plans, nil
}

// Destination looks up a destination by id.
func (s *Static) Destination(id string) (core.Destination, bool) {
	return s.catalog.Destination(id)
}

var _ Provider = (*Static)(nil)
