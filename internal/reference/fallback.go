package reference

import (
	"fmt"

	"github.com/cuogn/logistics-front-sub000/pkg/geo"
)

// embeddedProvinces is served when the provinces dataset cannot be loaded.
// Only the centrally governed cities are listed.
var embeddedProvinces = []AdministrativeUnit{
	{
		ID: "01", Code: "01", Name: "Hà Nội", NameWithType: "Thành phố Hà Nội",
		Type: TypeCity, Slug: "ha-noi", Centroid: &geo.Point{Lat: 21.0285, Lng: 105.8542},
	},
	{
		ID: "31", Code: "31", Name: "Hải Phòng", NameWithType: "Thành phố Hải Phòng",
		Type: TypeCity, Slug: "hai-phong", Centroid: &geo.Point{Lat: 20.8449, Lng: 106.6881},
	},
	{
		ID: "48", Code: "48", Name: "Đà Nẵng", NameWithType: "Thành phố Đà Nẵng",
		Type: TypeCity, Slug: "da-nang", Centroid: &geo.Point{Lat: 16.0544, Lng: 108.2022},
	},
	{
		ID: "79", Code: "79", Name: "Hồ Chí Minh", NameWithType: "Thành phố Hồ Chí Minh",
		Type: TypeCity, Slug: "ho-chi-minh", Centroid: &geo.Point{Lat: 10.7769, Lng: 106.7009},
	},
	{
		ID: "92", Code: "92", Name: "Cần Thơ", NameWithType: "Thành phố Cần Thơ",
		Type: TypeCity, Slug: "can-tho", Centroid: &geo.Point{Lat: 10.0452, Lng: 105.7469},
	},
}

// FallbackProvinces returns a copy of the embedded province list.
func FallbackProvinces() []AdministrativeUnit {
	out := make([]AdministrativeUnit, len(embeddedProvinces))
	copy(out, embeddedProvinces)
	return out
}

// FallbackWards returns five generic wards parented to provinceCode.
func FallbackWards(provinceCode string) []AdministrativeUnit {
	wards := make([]AdministrativeUnit, 0, fallbackWardCount)
	for i := 1; i <= fallbackWardCount; i++ {
		code := fmt.Sprintf("%s-%02d", provinceCode, i)
		name := fmt.Sprintf("Phường %d", i)
		wards = append(wards, AdministrativeUnit{
			ID:           code,
			Code:         code,
			Name:         name,
			NameWithType: name,
			ParentCode:   provinceCode,
			Type:         TypeWard,
			Slug:         fmt.Sprintf("phuong-%d", i),
		})
	}
	return wards
}

const fallbackWardCount = 5

// ProvinceCentroid returns the approximate centre of a province known to the
// embedded dataset.
func ProvinceCentroid(code string) (geo.Point, bool) {
	for _, p := range embeddedProvinces {
		if p.Code == code && p.Centroid != nil {
			return *p.Centroid, true
		}
	}
	return geo.Point{}, false
}
