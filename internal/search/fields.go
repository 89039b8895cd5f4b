package search

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sha1n/policy-search-server/internal/domain"
	"github.com/sha1n/policy-search-server/internal/index"
)

func parseIDs(f index.StoredFields, names ...string) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(names))
	for _, name := range names {
		id, err := f.ID(name)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, nil
}

func customerFromFields(f index.StoredFields) domain.CustomerDetails {
	return domain.CustomerDetails{
		FullName:         f.String(index.FieldCustomerFullName),
		PreferredName:    f.String(index.FieldCustomerPreferredName),
		Email:            f.String(index.FieldCustomerEmail),
		AlternativeEmail: f.String(index.FieldCustomerAlternativeEmail),
		HomePhone:        f.String(index.FieldCustomerHomePhone),
		WorkPhone:        f.String(index.FieldCustomerWorkPhone),
		MobilePhone:      f.String(index.FieldCustomerMobilePhone),
	}
}

func sortedStrings(values []string) []string {
	sort.Strings(values)
	return values
}
