package minio

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/reference"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/domain/registry"
)

// Reference table object names.
const (
	CountriesObject  = "countries.yaml"
	IndustriesObject = "industries.yaml"
)

// LoadReference builds a reference store from the bucket's YAML tables.
func (c *Client) LoadReference(ctx context.Context, normalizer *reference.Normalizer) (*reference.Store, error) {
	var countries, industries []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		countries, err = c.Fetch(gctx, CountriesObject)
		return err
	})
	g.Go(func() (err error) {
		industries, err = c.Fetch(gctx, IndustriesObject)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reference.Load(countries, industries, normalizer)
}

// LoadRegistries fetches and parses the snapshot for each kind.
func (c *Client) LoadRegistries(ctx context.Context, kinds []registry.Kind) ([]*registry.Snapshot, error) {
	return registry.LoadAll(ctx, c, kinds)
}

// PublishEmbedded uploads the tables and snapshots compiled into the
// binary, seeding an empty bucket.
func (c *Client) PublishEmbedded(ctx context.Context) ([]string, error) {
	countries, industries := reference.EmbeddedTables()
	objects := map[string][]byte{CountriesObject: countries, IndustriesObject: industries}
	for _, k := range registry.AllKinds {
		data, err := registry.EmbeddedFetcher.Fetch(ctx, k.FileName())
		if err != nil {
			return nil, err
		}
		objects[k.FileName()] = data
	}

	var uploaded []string
	for _, name := range sortedKeys(objects) {
		ct := "text/csv"
		if name == CountriesObject || name == IndustriesObject {
			ct = "application/yaml"
		}
		if err := c.Put(ctx, name, objects[name], ct); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, c.Key(name))
	}
	return uploaded, nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
