// Package reference provides the province and ward hierarchy used to turn
// administrative addresses into codes, names and approximate coordinates.
package reference

import (
	"context"
	"errors"

	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// Unit types as they appear in the bulk datasets.
const (
	TypeProvince    = "tinh"
	TypeCity        = "thanh-pho"
	TypeWard        = "phuong"
	TypeCommune     = "xa"
	TypeSpecialZone = "dac-khu"
)

var (
	// ErrEmptyDataset is returned by a Source whose payload contains no units.
	ErrEmptyDataset = errors.New("reference dataset is empty")

	// ErrSourceUnavailable is returned when a dataset cannot be fetched.
	ErrSourceUnavailable = errors.New("reference source unavailable")
)

// AdministrativeUnit is a province or ward.
type AdministrativeUnit struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	NameWithType string     `json:"nameWithType"`
	ParentCode   string     `json:"parentCode,omitempty"`
	Type         string     `json:"type,omitempty"`
	Slug         string     `json:"slug,omitempty"`
	Path         string     `json:"path,omitempty"`
	Centroid     *geo.Point `json:"centroid,omitempty"`
}

// IsProvince reports whether the unit has no parent.
func (u AdministrativeUnit) IsProvince() bool {
	return u.ParentCode == ""
}

// Source loads the bulk reference datasets.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// LoadProvinces returns every province.
	LoadProvinces(ctx context.Context) ([]AdministrativeUnit, error)

	// LoadWards returns every ward of every province.
	LoadWards(ctx context.Context) ([]AdministrativeUnit, error)
}
