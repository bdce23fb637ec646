// Package signing computes the request signature accepted by the catalog API.
//
// The signature is a 32-bit rolling hash over a fixed concatenation of the
// request path, the requested fields, selected query parameters and a salt
// taken from the provider's application bundle. Both the concatenation order
// and the 2^32 wraparound must match the provider byte for byte.
package signing

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

var (
	// ErrMissingSecret is returned when the secret params are incomplete
	ErrMissingSecret = errors.New("signing: secret params incomplete")
	// ErrMissingParam is returned when the source URL lacks a required query parameter
	ErrMissingParam = errors.New("signing: required query parameter missing")
)

const (
	// DetailPath is the item details endpoint
	DetailPath = "/3.0/items/byid"
	// ListPath is the item search endpoint
	ListPath = "/3.0/items"
)

// DetailFields is the field list requested from the details endpoint
const DetailFields = "items.locale,items.flags,items.search_attributes.detection_type,search_attributes," +
	"items.search_attributes.relevance,items.adm_div,items.city_alias,items.region_id," +
	"items.segment_id,items.reviews,items.point,request_type,context_rubrics,query_context," +
	"items.links,items.name_ex,items.name_back,items.org,items.group,items.dates,items.external_content," +
	"items.contact_groups,items.comment,items.ads.options,items.email_for_sending.allowed,items.stat," +
	"items.stop_factors,items.description,items.geometry.centroid,items.geometry.selection,items.geometry.style," +
	"items.timezone_offset,items.context,items.level_count,items.address,items.is_paid,items.access," +
	"items.access_comment,items.for_trucks,items.is_incentive,items.paving_type,items.capacity,items.schedule," +
	"items.schedule_special,items.floors,items.floor_id,items.floor_plans,ad,items.rubrics,items.routes," +
	"items.platforms,items.directions,items.barrier,items.reply_rate,items.purpose,items.purpose_code," +
	"items.attribute_groups,items.route_logo,items.has_goods,items.has_apartments_info," +
	"items.has_pinned_goods,items.has_realty,items.has_otello_stories,items.has_exchange," +
	"items.has_payments,items.has_dynamic_congestion,items.is_promoted,items.congestion," +
	"items.delivery,items.order_with_cart,search_type,items.has_discount,items.metarubrics," +
	"items.detailed_subtype,items.temporary_unavailable_atm_services,items.poi_category," +
	"items.has_ads_model,items.vacancies,items.structure_info.material,items.structure_info.floor_type," +
	"items.structure_info.gas_type,items.structure_info.year_of_construction,items.structure_info.elevators_count," +
	"items.structure_info.is_in_emergency_state,items.structure_info.project_type,items.has_otello_hotels"

// detailParams are copied from the search URL, in hash order
var detailParams = []string{"key", "locale", "shv", "stat[sid]", "stat[user]", "viewpoint1", "viewpoint2"}

// Hash computes r = (r*multiplier + c) mod 2^32 over the UTF-16 code units of s,
// starting from the increment.
func Hash(s string, params entity.SecretParams) uint32 {
	r := params.Increment
	for _, c := range utf16.Encode([]rune(s)) {
		r = r*params.Multiplier + uint32(c)
	}
	return r
}

// query is an ordered list of query parameters
type query [][2]string

func (q *query) set(k, v string) {
	for i := range *q {
		if (*q)[i][0] == k {
			(*q)[i][1] = v
			return
		}
	}
	*q = append(*q, [2]string{k, v})
}

func (q query) encode() string {
	parts := make([]string, 0, len(q))
	for _, kv := range q {
		parts = append(parts, url.QueryEscape(kv[0])+"="+url.QueryEscape(kv[1]))
	}
	return strings.Join(parts, "&")
}

// SignDetailURL builds the signed details URL for itemID from an observed search URL.
// It fails when a secret or any required search parameter is missing; callers skip
// the item rather than retrying with the same params.
func SignDetailURL(searchURL, itemID string, params entity.SecretParams) (string, error) {
	if !params.Complete() {
		return "", ErrMissingSecret
	}
	if itemID == "" {
		return "", fmt.Errorf("%w: id", ErrMissingParam)
	}

	u, err := url.Parse(searchURL)
	if err != nil {
		return "", fmt.Errorf("signing: parse search url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("signing: search url %q is not absolute", searchURL)
	}

	src := u.Query()
	values := make(map[string]string, len(detailParams))
	for _, name := range detailParams {
		v := src.Get(name)
		if v == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
		values[name] = v
	}

	var b strings.Builder
	b.WriteString(DetailPath)
	b.WriteString(DetailFields)
	b.WriteString(itemID)
	for _, name := range detailParams {
		b.WriteString(values[name])
	}
	b.WriteString(params.Salt)
	r := Hash(b.String(), params)

	q := query{
		{"id", itemID},
		{"key", values["key"]},
		{"locale", values["locale"]},
		{"fields", DetailFields},
		{"viewpoint1", values["viewpoint1"]},
		{"viewpoint2", values["viewpoint2"]},
		{"shv", values["shv"]},
		{"stat[sid]", values["stat[sid]"]},
		{"stat[user]", values["stat[user]"]},
		{"r", strconv.FormatUint(uint64(r), 10)},
	}

	return u.Scheme + "://" + u.Host + DetailPath + "?" + q.encode(), nil
}
