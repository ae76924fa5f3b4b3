package models

// MenuItem is a dish as presented to the user. Index is 1-based and only
// meaningful within one menu listing.
type MenuItem struct {
	Index       int     `json:"index,omitempty" bson:"-" mapstructure:"-"`
	Name        string  `json:"name" bson:"name" mapstructure:"name"`
	Description string  `json:"description" bson:"description" mapstructure:"description"`
	Price       float64 `json:"price" bson:"price" mapstructure:"price"`
}

// Indexed returns a copy of items numbered from 1 in their current order.
func Indexed(items []MenuItem) []MenuItem {
	out := make([]MenuItem, len(items))
	for i, item := range items {
		item.Index = i + 1
		out[i] = item
	}
	return out
}
