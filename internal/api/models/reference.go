package models

// AdministrativeUnit is a province or ward.
type AdministrativeUnit struct {
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	NameWithType string      `json:"nameWithType"`
	ParentCode   string      `json:"parentCode,omitempty"`
	Type         string      `json:"type,omitempty"`
	Slug         string      `json:"slug,omitempty"`
	Path         string      `json:"path,omitempty"`
	Centroid     *QuotePoint `json:"centroid,omitempty"`
}

// AdministrativeUnitList wraps a list of units.
type AdministrativeUnitList struct {
	Items []AdministrativeUnit `json:"items"`
	Count int                  `json:"count"`
}

// CacheClearResponse is the response of POST /v1/admin/cache:clear.
type CacheClearResponse struct {
	ClearedAt Timestamp `json:"clearedAt"`
}
