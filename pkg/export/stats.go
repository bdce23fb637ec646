package export

import (
	"fmt"
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/normalize"
)

// ComputeStats summarizes contact coverage
func ComputeStats(items []entity.CanonicalItem) entity.Stats {
	var s entity.Stats
	for i := range items {
		s.Add(&items[i])
	}
	return s
}

// ZoneCounts counts items per zone relative to center; items without
// coordinates are not counted.
func ZoneCounts(items []entity.CanonicalItem, center *config.City) map[string]int {
	counts := make(map[string]int)
	for i := range items {
		if p := Place(&items[i], center); p.Known {
			counts[p.Zone]++
		}
	}
	return counts
}

// ZoneBanner renders the zone statistics line shown above spreadsheet tables
func ZoneBanner(counts map[string]int) string {
	var parts []string
	for _, zone := range normalize.Zones {
		if n, ok := counts[zone]; ok {
			parts = append(parts, fmt.Sprintf("%s: %d", zone, n))
		}
	}
	if len(parts) == 0 {
		return "📊 Статистика по зонам: нет координат"
	}
	return "📊 Статистика по зонам: " + strings.Join(parts, " | ")
}
