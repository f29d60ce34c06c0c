package listings

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection renders views with coordinates as GeoJSON points.
func FeatureCollection(views []View) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range views {
		v := &views[i]
		if v.Location.Latitude == nil || v.Location.Longitude == nil {
			continue
		}

		f := geojson.NewFeature(orb.Point{*v.Location.Longitude, *v.Location.Latitude})
		f.ID = v.WebSlug
		f.Properties["web_slug"] = v.WebSlug
		f.Properties["property_type"] = string(v.PropertyType)
		f.Properties["title"] = v.Title
		f.Properties["price"] = v.Price
		f.Properties["rooms"] = v.TypeAttributes.Rooms
		f.Properties["distance_km"] = v.DistanceKm
		fc.Append(f)
	}
	return fc
}
