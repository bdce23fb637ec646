package export

import (
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/normalize"
)

// ColumnKind tells writers how to render a column
type ColumnKind int

const (
	KindText ColumnKind = iota
	// KindDecimal is a number shown with one decimal
	KindDecimal
	KindInteger
	KindCoordinate
	// KindLink holds a URL shown under a fixed label
	KindLink
)

// Column describes one output column
type Column struct {
	Header string
	Width  float64
	Kind   ColumnKind
	// Label replaces the URL text of link cells in rich formats
	Label string
}

// Column headers referenced by writers
const (
	HeaderName     = "Название"
	HeaderDistance = "Расст. от центра (км)"
	HeaderZone     = "Зона"
	HeaderRating   = "Рейтинг"
)

// Columns is the export layout, in order
var Columns = []Column{
	{Header: HeaderName, Width: 30},
	{Header: "Категория", Width: 20},
	{Header: "Специализация", Width: 25},
	{Header: "Адрес", Width: 40},
	{Header: HeaderDistance, Width: 12, Kind: KindDecimal},
	{Header: HeaderZone, Width: 16},
	{Header: HeaderRating, Width: 8, Kind: KindDecimal},
	{Header: "Оценок", Width: 10, Kind: KindInteger},
	{Header: "Отзывов", Width: 10, Kind: KindInteger},
	{Header: "Телефоны", Width: 20},
	{Header: "Мобильные", Width: 20},
	{Header: "Email", Width: 25},
	{Header: "Сайт", Width: 30},
	{Header: "Telegram", Width: 25},
	{Header: "Telegram username", Width: 18},
	{Header: "VK", Width: 25},
	{Header: "WhatsApp", Width: 25},
	{Header: "Прочие соцсети", Width: 30},
	{Header: "График работы", Width: 25},
	{Header: "Рубрики", Width: 30},
	{Header: "Описание", Width: 50},
	{Header: "Организация", Width: 25},
	{Header: "Широта", Width: 12, Kind: KindCoordinate},
	{Header: "Долгота", Width: 12, Kind: KindCoordinate},
	{Header: "Открыть в 2ГИС", Width: 12, Kind: KindLink, Label: "2ГИС"},
	{Header: "Открыть в Яндекс", Width: 12, Kind: KindLink, Label: "Яндекс"},
}

// Row is one flattened item. Cells are string, float64, int or nil for empty,
// aligned with Columns.
type Row []any

// Headers returns the column headers
func Headers() []string {
	h := make([]string, len(Columns))
	for i, c := range Columns {
		h[i] = c.Header
	}
	return h
}

func orNil[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}

// Placement is the distance and zone of an item relative to a city centre
type Placement struct {
	DistanceKm float64
	Zone       string
	Known      bool
}

// Place locates an item relative to center; unknown without coordinates or centre
func Place(it *entity.CanonicalItem, center *config.City) Placement {
	if center == nil || !it.HasCoordinates() {
		return Placement{}
	}
	d := normalize.DistanceKm(center.Lat, center.Lon, *it.Latitude, *it.Longitude)
	return Placement{DistanceKm: d, Zone: normalize.Zone(d), Known: true}
}

// FormatForExport flattens items into rows. Distance and zone are filled when
// center is set and the item has coordinates.
func FormatForExport(items []entity.CanonicalItem, center *config.City) []Row {
	rows := make([]Row, 0, len(items))
	for i := range items {
		it := &items[i]
		p := Place(it, center)

		var distance, zone, rating, ratings, reviews, lat, lon any
		if p.Known {
			distance, zone = p.DistanceKm, p.Zone
		}
		if it.Rating != nil {
			rating, ratings, reviews = orNil(it.Rating.Value), orNil(it.Rating.Count), orNil(it.Rating.ReviewCount)
		}
		if it.HasCoordinates() {
			lat, lon = *it.Latitude, *it.Longitude
		}

		rows = append(rows, Row{
			it.Name,
			it.Category,
			it.Specialization,
			it.Address,
			distance,
			zone,
			rating,
			ratings,
			reviews,
			strings.Join(it.NormalizedPhones, ", "),
			strings.Join(it.MobilePhones, ", "),
			strings.Join(it.Emails, "\n"),
			strings.Join(it.Websites, "\n"),
			it.Telegram,
			it.TelegramUsername,
			it.VK,
			it.WhatsApp,
			strings.Join(it.OtherSocials, "\n"),
			it.WorkingHours,
			it.Rubrics,
			it.Description,
			it.OrgName,
			lat,
			lon,
			it.Link2GIS,
			it.LinkYandex,
		})
	}
	return rows
}
