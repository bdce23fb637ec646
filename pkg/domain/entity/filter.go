package entity

import (
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
)

// Filter narrows the exported set; every active option is ANDed
type Filter struct {
	MinRating         float64 `json:"minRating"`
	OnlyWithPhone     bool    `json:"onlyWithPhone"`
	OnlyMobilePhones  bool    `json:"onlyMobilePhones"`
	OnlyWithEmail     bool    `json:"onlyWithEmail"`
	OnlyWithSite      bool    `json:"onlyWithSite"`
	OnlyWithTelegram  bool    `json:"onlyWithTelegram"`
	OnlyWithAnySocial bool    `json:"onlyWithAnySocial"`
	NoSiteWithSocial  bool    `json:"noSiteWithSocial"`
}

// Active reports whether any option narrows the set
func (f Filter) Active() bool {
	return f != Filter{}
}

// Settings is the UI state persisted next to the collected data
type Settings struct {
	Filters  Filter `json:"filters"`
	City     string `json:"city"`
	PackSize int    `json:"packSize"`
	Format   string `json:"format"`
}

// ExportJob describes one export request. Items are already filtered and deduplicated.
type ExportJob struct {
	Format   string
	Category string
	// City is the centre for distance and zone columns; nil leaves them empty
	City     *config.City
	PackSize int
	Items    []CanonicalItem
	Date     time.Time
}
