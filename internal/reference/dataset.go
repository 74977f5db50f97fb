package reference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// rawUnit is one entry of the bulk JSON datasets. Provinces omit the parent
// and path fields.
type rawUnit struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	NameWithType string `json:"name_with_type"`
	Type         string `json:"type"`
	Slug         string `json:"slug"`
	ParentCode   string `json:"parent_code"`
	Path         string `json:"path"`
	PathWithType string `json:"path_with_type"`
}

// ParseUnits decodes a bulk dataset. Both the keyed form
// {"01": {...}, "79": {...}} and a plain array are accepted. The result is
// sorted by code.
func ParseUnits(data []byte) ([]AdministrativeUnit, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDataset
	}

	var raws []rawUnit
	switch trimmed[0] {
	case '{':
		keyed := make(map[string]rawUnit)
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("decode keyed dataset: %w", err)
		}
		raws = make([]rawUnit, 0, len(keyed))
		for code, u := range keyed {
			if u.Code == "" {
				u.Code = code
			}
			raws = append(raws, u)
		}
	case '[':
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("decode dataset array: %w", err)
		}
	default:
		return nil, fmt.Errorf("decode dataset: unexpected leading byte %q", trimmed[0])
	}

	units := make([]AdministrativeUnit, 0, len(raws))
	for _, r := range raws {
		code := strings.TrimSpace(r.Code)
		if code == "" || strings.TrimSpace(r.Name) == "" {
			continue
		}
		nameWithType := r.NameWithType
		if nameWithType == "" {
			nameWithType = r.Name
		}
		path := r.PathWithType
		if path == "" {
			path = r.Path
		}
		units = append(units, AdministrativeUnit{
			ID:           code,
			Code:         code,
			Name:         r.Name,
			NameWithType: nameWithType,
			ParentCode:   strings.TrimSpace(r.ParentCode),
			Type:         r.Type,
			Slug:         r.Slug,
			Path:         path,
		})
	}

	if len(units) == 0 {
		return nil, ErrEmptyDataset
	}

	sortByCode(units)
	return units, nil
}

func sortByCode(units []AdministrativeUnit) {
	sort.Slice(units, func(i, j int) bool { return units[i].Code < units[j].Code })
}

// indexByParent groups wards by their parent province code.
func indexByParent(wards []AdministrativeUnit) map[string][]AdministrativeUnit {
	index := make(map[string][]AdministrativeUnit)
	for _, w := range wards {
		if w.ParentCode == "" {
			continue
		}
		index[w.ParentCode] = append(index[w.ParentCode], w)
	}
	return index
}
