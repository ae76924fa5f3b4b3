package recommend

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/example/khanpan/pkg/models"
)

var (
	arraySpan         = regexp.MustCompile(`(?s)\[.*\]`)
	numberedDishEntry = regexp.MustCompile(`\d+\.\s+\w+`)
)

// ParseMenuListing reports whether reply is a menu listing: a JSON array of
// dishes, either the whole reply or the outermost [...] span inside it. The
// first element must carry a name and a price key; a price of 0 is valid.
func ParseMenuListing(reply string) ([]models.MenuItem, bool) {
	if items, ok := decodeListing(strings.TrimSpace(reply)); ok {
		return items, true
	}
	span := arraySpan.FindString(reply)
	if span == "" {
		return nil, false
	}
	return decodeListing(span)
}

func decodeListing(text string) ([]models.MenuItem, bool) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil || len(raw) == 0 {
		return nil, false
	}
	if _, ok := raw[0]["name"]; !ok {
		return nil, false
	}
	if _, ok := raw[0]["price"]; !ok {
		return nil, false
	}

	var items []models.MenuItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	if items[0].Name == "" {
		return nil, false
	}
	for i := range items {
		if items[i].Index == 0 {
			items[i].Index = i + 1
		}
	}
	return items, true
}

// IsRecommendationList reports whether reply contains a numbered list such as
// "1. Paneer Tikka".
func IsRecommendationList(reply string) bool {
	return numberedDishEntry.MatchString(reply)
}
