package services

import (
	"context"
	"errors"
	"strings"

	"github.com/easyorder/quickorder/internal/repositories"
)

// RegionResolverDeps wires the region reference data.
type RegionResolverDeps struct {
	Regions repositories.RegionLookup
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type regionResolver struct {
	regions repositories.RegionLookup
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewRegionResolver constructs a RegionResolver backed by the region lookup.
func NewRegionResolver(deps RegionResolverDeps) (RegionResolver, error) {
	if deps.Regions == nil {
		return nil, errors.New("region resolver: region lookup is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &regionResolver{regions: deps.Regions, logger: logger}, nil
}

func (r *regionResolver) Resolve(ctx context.Context, name, countryID, locale string) (Region, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(countryID) == "" {
		return Region{}, false
	}
	regions, ok := r.load(ctx, countryID, name)
	if !ok {
		return Region{}, false
	}
	for _, region := range regions {
		if region.Matches(name, locale) {
			return region, true
		}
	}
	return Region{}, false
}

func (r *regionResolver) Lookup(ctx context.Context, regionID, countryID string) (Region, bool) {
	regionID = strings.TrimSpace(regionID)
	if regionID == "" || strings.TrimSpace(countryID) == "" {
		return Region{}, false
	}
	regions, ok := r.load(ctx, countryID, regionID)
	if !ok {
		return Region{}, false
	}
	for _, region := range regions {
		if region.ID == regionID {
			return region, true
		}
	}
	return Region{}, false
}

func (r *regionResolver) List(ctx context.Context, countryID string) ([]Region, error) {
	countryID = strings.ToUpper(strings.TrimSpace(countryID))
	if countryID == "" {
		return []Region{}, nil
	}
	regions, err := r.regions.ListByCountry(ctx, countryID)
	if err != nil {
		return nil, err
	}
	if regions == nil {
		regions = []Region{}
	}
	return regions, nil
}

func (r *regionResolver) load(ctx context.Context, countryID, term string) ([]Region, bool) {
	countryID = strings.ToUpper(strings.TrimSpace(countryID))
	regions, err := r.regions.ListByCountry(ctx, countryID)
	if err != nil {
		r.logger(ctx, "region.lookup_failed", map[string]any{
			"level":   "warn",
			"country": countryID,
			"region":  term,
			"error":   err,
		})
		return nil, false
	}
	return regions, true
}
