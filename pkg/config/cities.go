package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCity is used when no city is selected
const DefaultCity = "moscow"

// City is a city centre used for distance and zone columns
type City struct {
	ID   string  `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lon" json:"lon"`
}

// Cities indexes cities by id
type Cities map[string]City

type citiesFile struct {
	Cities []City `yaml:"cities"`
}

// BuiltinCities returns the cities known without a config file
func BuiltinCities() Cities {
	return Cities{
		"moscow":       {ID: "moscow", Name: "Москва", Lat: 55.755826, Lon: 37.617300},
		"spb":          {ID: "spb", Name: "Санкт-Петербург", Lat: 59.938784, Lon: 30.314997},
		"novosibirsk":  {ID: "novosibirsk", Name: "Новосибирск", Lat: 55.030199, Lon: 82.920430},
		"ekaterinburg": {ID: "ekaterinburg", Name: "Екатеринбург", Lat: 56.838011, Lon: 60.597465},
		"kazan":        {ID: "kazan", Name: "Казань", Lat: 55.796127, Lon: 49.106414},
		"almaty":       {ID: "almaty", Name: "Алматы", Lat: 43.238949, Lon: 76.889709},
		"astana":       {ID: "astana", Name: "Астана", Lat: 51.128207, Lon: 71.430411},
		"bishkek":      {ID: "bishkek", Name: "Бишкек", Lat: 42.874621, Lon: 74.569762},
		"tashkent":     {ID: "tashkent", Name: "Ташкент", Lat: 41.299496, Lon: 69.240073},
		"minsk":        {ID: "minsk", Name: "Минск", Lat: 53.902284, Lon: 27.561831},
	}
}

// ParseCities decodes a YAML document of the form
//
//	cities:
//	  - {id: omsk, name: Омск, lat: 54.98, lon: 73.37}
func ParseCities(data []byte) (Cities, error) {
	var f citiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cities: %w", err)
	}
	out := make(Cities, len(f.Cities))
	for i, c := range f.Cities {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, fmt.Errorf("parse cities: entry %d has no id", i)
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, fmt.Errorf("parse cities: %s has invalid coordinates", c.ID)
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		out[c.ID] = c
	}
	return out, nil
}

// LoadCities returns the built-in cities overridden by the file at path.
// An empty path returns the built-ins.
func LoadCities(path string) (Cities, error) {
	cities := BuiltinCities()
	if path == "" {
		return cities, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities: %w", err)
	}
	extra, err := ParseCities(data)
	if err != nil {
		return nil, err
	}
	for id, c := range extra {
		cities[id] = c
	}
	return cities, nil
}

// Lookup finds a city by id or by its display name, case-insensitively
func (c Cities) Lookup(key string) (City, bool) {
	if city, ok := c[key]; ok {
		return city, true
	}
	for _, city := range c {
		if strings.EqualFold(city.ID, key) || strings.EqualFold(city.Name, key) {
			return city, true
		}
	}
	return City{}, false
}

// IDs returns the city ids in sorted order
func (c Cities) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
