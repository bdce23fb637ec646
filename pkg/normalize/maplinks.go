package normalize

import (
	"net/url"
	"strconv"
	"strings"
)

const defaultPointTitle = "Точка"

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// encodeURIComponent escapes like the browser function of the same name,
// which the map site expects in its text parameter.
func encodeURIComponent(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")
	for _, keep := range []string{"!", "'", "(", ")", "*"} {
		e = strings.ReplaceAll(e, url.QueryEscape(keep), keep)
	}
	return e
}

// Link2GIS returns the 2GIS map link for a point, or "" without coordinates
func Link2GIS(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return ""
	}
	return "https://2gis.ru/geo/" + coord(*lon) + "%2C" + coord(*lat)
}

// LinkYandex returns the Yandex Maps link for a point labelled with title,
// or "" without coordinates.
func LinkYandex(lat, lon *float64, title string) string {
	if lat == nil || lon == nil {
		return ""
	}
	if title == "" {
		title = defaultPointTitle
	}
	return "https://yandex.ru/maps/?pt=" + coord(*lon) + "," + coord(*lat) +
		"&z=17&l=map&text=" + encodeURIComponent(title)
}
