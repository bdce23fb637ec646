package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// Number decodes a JSON number that the catalog sometimes sends as a string
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON accepts numbers, numeric strings and null
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

// ListItem is the part of a search result needed to request details
type ListItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AddressName string `json:"address_name"`
}

// ListResponse is the search endpoint envelope
type ListResponse struct {
	Result struct {
		Items []ListItem `json:"items"`
		Total int        `json:"total"`
	} `json:"result"`
}

// DetailItem is the subset of a details record the normalizer reads
type DetailItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AddressName string `json:"address_name"`
	Description string `json:"description"`
	Reviews     *struct {
		GeneralRating               Number `json:"general_rating"`
		GeneralReviewCountWithStars Number `json:"general_review_count_with_stars"`
		GeneralReviewCount          Number `json:"general_review_count"`
	} `json:"reviews"`
	Point *struct {
		Lat Number `json:"lat"`
		Lon Number `json:"lon"`
	} `json:"point"`
	Rubrics []struct {
		Name string `json:"name"`
	} `json:"rubrics"`
	Org *struct {
		Name string `json:"name"`
	} `json:"org"`
	ContactGroups []ContactGroup  `json:"contact_groups"`
	Schedule      json.RawMessage `json:"schedule"`
}

// DetailResponse is the details endpoint envelope
type DetailResponse struct {
	Result struct {
		Items []json.RawMessage `json:"items"`
	} `json:"result"`
}

// DecodeDetailItem decodes one raw details record. encoding/json skips fields
// of the wrong type and keeps the rest, so type errors are ignored; a syntax
// error yields the zero record.
func DecodeDetailItem(raw json.RawMessage) DetailItem {
	var d DetailItem
	if err := json.Unmarshal(raw, &d); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return DetailItem{}
		}
	}
	return d
}

// ItemKey returns the dedup key of a search result: the id up to the first
// underscore, or name|address when that prefix is empty.
func ItemKey(it ListItem) string {
	if key, _, _ := strings.Cut(it.ID, "_"); key != "" {
		return key
	}
	if it.Name == "" && it.AddressName == "" {
		return ""
	}
	return it.Name + "|" + it.AddressName
}

// ExtractItem builds the canonical item from a details record
func ExtractItem(d DetailItem) entity.CanonicalItem {
	contacts := CategorizeContacts(d.ContactGroups)
	normalized, mobile := NormalizePhones(contacts.Phones)
	socials := ClassifySocials(contacts.Social)

	rubricNames := make([]string, 0, len(d.Rubrics))
	for _, r := range d.Rubrics {
		if r.Name != "" {
			rubricNames = append(rubricNames, r.Name)
		}
	}
	rubrics := strings.Join(rubricNames, ", ")
	name := ParseName(d.Name, rubrics)

	item := entity.CanonicalItem{
		Name:             name.Name,
		Category:         name.Category,
		Specialization:   name.Specialization,
		FullName:         d.Name,
		Address:          d.AddressName,
		Phones:           contacts.Phones,
		NormalizedPhones: normalized,
		MobilePhones:     mobile,
		Websites:         contacts.Websites,
		Emails:           contacts.Emails,
		Telegram:         socials.Telegram,
		TelegramUsername: socials.TelegramUsername,
		VK:               socials.VK,
		WhatsApp:         socials.WhatsApp,
		OtherSocials:     socials.Other,
		WorkingHours:     FormatSchedule(DecodeSchedule(d.Schedule)),
		Rubrics:          rubrics,
		Description:      d.Description,
	}

	if d.Reviews != nil {
		item.Rating = &entity.Rating{
			Value:       d.Reviews.GeneralRating.Value,
			Count:       int(d.Reviews.GeneralReviewCountWithStars.Value),
			ReviewCount: int(d.Reviews.GeneralReviewCount.Value),
		}
	}
	if d.Point != nil && d.Point.Lat.Valid && d.Point.Lon.Valid {
		lat, lon := d.Point.Lat.Value, d.Point.Lon.Value
		item.Latitude, item.Longitude = &lat, &lon
	}
	if d.Org != nil {
		item.OrgName = d.Org.Name
	}

	item.Link2GIS = Link2GIS(item.Latitude, item.Longitude)
	item.LinkYandex = LinkYandex(item.Latitude, item.Longitude, d.Name)
	item.Fill()
	return item
}
