package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/easyorder/quickorder/internal/domain"
	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
)

const regionsCollection = "regions"

type regionDocument struct {
	CountryID   string            `firestore:"countryId"`
	Code        string            `firestore:"code"`
	DefaultName string            `firestore:"defaultName"`
	Names       map[string]string `firestore:"names"`
	SortOrder   int               `firestore:"sortOrder"`
}

// RegionRepository implements repositories.RegionLookup. Region documents are keyed by the
// region id and carry the localized names per locale.
type RegionRepository struct {
	regions *pfirestore.Collection[regionDocument]
}

// NewRegionRepository constructs a Firestore-backed region lookup.
func NewRegionRepository(provider *pfirestore.Provider) (*RegionRepository, error) {
	if provider == nil {
		return nil, errors.New("region repository requires firestore provider")
	}
	return &RegionRepository{
		regions: pfirestore.NewCollection[regionDocument](provider, regionsCollection, nil, nil),
	}, nil
}

// ListByCountry returns the regions of the country ordered by sortOrder then default name.
func (r *RegionRepository) ListByCountry(ctx context.Context, countryID string) ([]domain.Region, error) {
	countryID = strings.ToUpper(strings.TrimSpace(countryID))
	if countryID == "" {
		return []domain.Region{}, nil
	}
	docs, err := r.regions.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("countryId", "==", countryID)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Data.SortOrder != docs[j].Data.SortOrder {
			return docs[i].Data.SortOrder < docs[j].Data.SortOrder
		}
		return docs[i].Data.DefaultName < docs[j].Data.DefaultName
	})

	regions := make([]domain.Region, 0, len(docs))
	for _, doc := range docs {
		names := make(map[string]string, len(doc.Data.Names))
		for locale, name := range doc.Data.Names {
			if name = strings.TrimSpace(name); name != "" {
				names[locale] = name
			}
		}
		regions = append(regions, domain.Region{
			ID:          doc.ID,
			CountryID:   countryID,
			Code:        strings.TrimSpace(doc.Data.Code),
			DefaultName: strings.TrimSpace(doc.Data.DefaultName),
			Names:       names,
		})
	}
	return regions, nil
}
