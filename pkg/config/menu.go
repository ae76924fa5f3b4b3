package config

import (
	"fmt"

	"github.com/example/khanpan/pkg/models"
	"github.com/spf13/viper"
)

type menuFile struct {
	Menu []models.MenuItem `mapstructure:"menu"`
}

// LoadMenu reads the dishes listed under the "menu" key of a YAML file.
func LoadMenu(path string) ([]models.MenuItem, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}

	var f menuFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal menu: %w", err)
	}
	for i, item := range f.Menu {
		if item.Name == "" || item.Price < 0 {
			return nil, fmt.Errorf("menu item %d: name is required and price must not be negative", i+1)
		}
	}
	return f.Menu, nil
}
