package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// SearchProfile holds the source query, request headers and the keyword
// list used to spot temporary rentals. Treat it as read-only once built.
type SearchProfile struct {
	BaseParams              map[string]string `toml:"base_params"`
	Headers                 map[string]string `toml:"headers"`
	TemporaryRentalKeywords []string          `toml:"temporary_rental_keywords"`
}

var defaultBaseParams = map[string]string{
	"category_id":    "200",
	"distance_in_km": "40",
	"operation":      "rent",
	"order_by":       "price_low_to_high",
	"source":         "side_bar_filters",
	"rooms":          "2",
	"min_sale_price": "100",
}

// Device and tracking identifiers (mpid, x-deviceid) are left out. A profile
// that needs them sets them under [headers].
var defaultHeaders = map[string]string{
	"Accept":             "application/json, text/plain, */*",
	"Connection":         "keep-alive",
	"Origin":             "https://es.wallapop.com",
	"Referer":            "https://es.wallapop.com/",
	"Sec-Fetch-Dest":     "empty",
	"Sec-Fetch-Mode":     "cors",
	"Sec-Fetch-Site":     "same-site",
	"Sec-GPC":            "1",
	"User-Agent":         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
	"accept-language":    "es,en-GB;q=0.9,en-US;q=0.8,en;q=0.7",
	"deviceos":           "0",
	"sec-ch-ua":          `"Brave";v="141", "Not?A_Brand";v="8", "Chromium";v="141"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"macOS"`,
	"x-appversion":       "812050",
	"x-deviceos":         "0",
}

// Substring matches are case-insensitive, so month names also hit inside
// longer words. Best effort only.
var defaultTemporaryRentalKeywords = []string{
	"vacacional",
	"vacaciones",
	"temporada",
	"escolar",
	"enero",
	"febrero",
	"marzo",
	"abril",
	"mayo",
	"junio",
	"julio",
	"agosto",
	"septiembre",
	"octubre",
	"noviembre",
	"diciembre",
	"estancia mínima",
	"minimo",
	"mínimo",
	"noches",
}

// DefaultSearchProfile returns a fresh copy of the built-in profile centred on
// the given coordinates.
func DefaultSearchProfile(latitude, longitude float64) SearchProfile {
	p := SearchProfile{
		BaseParams:              copyMap(defaultBaseParams),
		Headers:                 copyMap(defaultHeaders),
		TemporaryRentalKeywords: append([]string(nil), defaultTemporaryRentalKeywords...),
	}
	p.BaseParams["latitude"] = strconv.FormatFloat(latitude, 'f', -1, 64)
	p.BaseParams["longitude"] = strconv.FormatFloat(longitude, 'f', -1, 64)
	return p
}

// LoadSearchProfile starts from the default profile and overlays the TOML
// file at path. Keys present in the file replace or extend the defaults; a
// keyword list in the file replaces the default list.
func LoadSearchProfile(path string, latitude, longitude float64) (SearchProfile, error) {
	profile := DefaultSearchProfile(latitude, longitude)
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SearchProfile{}, fmt.Errorf("failed to read search profile %s: %w", path, err)
	}

	var override SearchProfile
	if err := toml.Unmarshal(data, &override); err != nil {
		return SearchProfile{}, fmt.Errorf("failed to parse search profile %s: %w", path, err)
	}

	for k, v := range override.BaseParams {
		profile.BaseParams[k] = v
	}
	for k, v := range override.Headers {
		profile.Headers[k] = v
	}
	if len(override.TemporaryRentalKeywords) > 0 {
		profile.TemporaryRentalKeywords = append([]string(nil), override.TemporaryRentalKeywords...)
	}
	return profile, nil
}

// QueryFor builds the first-page query for one property type.
func (p SearchProfile) QueryFor(propertyType string) url.Values {
	params := url.Values{}
	for k, v := range p.BaseParams {
		params.Set(k, v)
	}
	params.Set("type", propertyType)
	return params
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
