// Package normalizer turns raw search results into canonical listings.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/PabloReca/busca-pisos/internal/models"
)

// Fields the source changes between requests without the listing changing.
var volatileFields = []string{
	"id",
	"user_id",
	"category_id",
	"shipping",
	"bump",
	"is_favoriteable",
	"is_refurbished",
	"is_top_profile",
	"has_warranty",
	"favorited",
	"taxonomy",
}

// Simplify returns a copy of raw with volatile fields removed, the price
// object collapsed to its amount, images reduced to their "big" URL and
// millisecond timestamps rewritten as RFC 3339 UTC strings. raw is not
// modified.
func Simplify(raw models.RawItem) map[string]interface{} {
	item := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		item[k] = v
	}
	for _, f := range volatileFields {
		delete(item, f)
	}

	if price, ok := item["price"].(map[string]interface{}); ok {
		if amount, ok := price["amount"]; ok && amount != nil {
			item["price"] = amount
		} else {
			item["price"] = json.Number("0")
		}
	}

	item["images"] = bigImageURLs(item["images"])

	for _, key := range []string{"created_at", "modified_at"} {
		if v, ok := item[key]; ok {
			if ts := parseEpochMillis(v); ts != nil {
				item[key] = ts.Format(time.RFC3339Nano)
			} else {
				item[key] = nil
			}
		}
	}

	return item
}

// Fingerprint hashes the canonical JSON form of a simplified item.
// encoding/json writes map keys in sorted order, so the result does not
// depend on field order.
func Fingerprint(item map[string]interface{}) (string, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("failed to serialize item: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Normalize maps one raw item into a Listing of the given category. Missing
// or malformed optional fields become nil; only a payload that cannot be
// serialized at all is an error.
func Normalize(raw models.RawItem, category models.Category) (models.Listing, error) {
	item := Simplify(raw)

	hash, err := Fingerprint(item)
	if err != nil {
		return models.Listing{}, err
	}

	location := asObject(item["location"])
	attrs := asObject(item["type_attributes"])
	reserved := asObject(item["reserved"])

	listing := models.Listing{
		WebSlug:      stringValue(item["web_slug"]),
		PropertyType: category,
		Hash:         hash,
		Title:        asString(item["title"]),
		Description:  asString(item["description"]),
		Price:        asFloat(item["price"]),
		Images:       asStrings(item["images"]),
		Reserved:     asBool(reserved["flag"]),
		Latitude:     asFloat(location["latitude"]),
		Longitude:    asFloat(location["longitude"]),
		PostalCode:   asString(location["postal_code"]),
		City:         asString(location["city"]),
		Region:       asString(location["region"]),
		CountryCode:  asString(location["country_code"]),
		Operation:    asString(attrs["operation"]),
		Surface:      asFloat(attrs["surface"]),
		Rooms:        asInt(attrs["rooms"]),
		Bathrooms:    asInt(attrs["bathrooms"]),
		ListedAt:     asTime(item["created_at"]),
		ModifiedAt:   asTime(item["modified_at"]),
	}
	return listing, nil
}

func bigImageURLs(v interface{}) []interface{} {
	images, ok := v.([]interface{})
	if !ok {
		return []interface{}{}
	}
	urls := make([]interface{}, 0, len(images))
	for _, img := range images {
		variants := asObject(asObject(img)["urls"])
		if big, ok := variants["big"].(string); ok && big != "" {
			urls = append(urls, big)
		}
	}
	return urls
}

func parseEpochMillis(v interface{}) *time.Time {
	var ms float64
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		ms = f
	case float64:
		ms = n
	case int64:
		ms = float64(n)
	case int:
		ms = float64(n)
	default:
		return nil
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

func asObject(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func asString(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func stringValue(v interface{}) string {
	if s := asString(v); s != nil {
		return *s
	}
	return ""
}

func asFloat(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func asInt(v interface{}) *int {
	f := asFloat(v)
	if f == nil {
		return nil
	}
	i := int(math.Round(*f))
	return &i
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asTime(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
