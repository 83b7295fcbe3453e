package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"

	"ridizi/pkg/models"
)

// ErrNotFound is returned once every source in the chain has been tried
// without producing a record.
var ErrNotFound = errors.New("resolver: book not found in any source")

// Source is implemented by each external catalog API. A source returns
// ErrNotFound (possibly wrapped) when it has no record for the ISBN; any
// record it does return wins the chain, however sparse its fields.
type Source interface {
	Name() string
	Lookup(ctx context.Context, isbn13 string) (*models.BookMeta, error)
}

// Chain tries sources in priority order and returns the first record found.
type Chain struct {
	Sources []Source
}

func NewChain(sources ...Source) *Chain {
	return &Chain{Sources: sources}
}

// Resolve walks the chain. Per-source failures are logged and swallowed;
// only total exhaustion is reported, as ErrNotFound.
func (c *Chain) Resolve(ctx context.Context, isbn13 string) (*models.BookMeta, error) {
	for _, src := range c.Sources {
		meta, err := src.Lookup(ctx, isbn13)
		if err != nil {
			log.Printf("[resolver] %s lookup failed for %s: %v", src.Name(), isbn13, err)
			continue
		}
		return meta, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, isbn13)
}
