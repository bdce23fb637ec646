package signing

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// MarkersPath is the clustered map markers endpoint the map page polls while panning
const MarkersPath = "/3.0/markers/clustered"

// ListFields is the field list requested when a markers request is turned into a search
const ListFields = "items.locale,items.flags,items.search_attributes.detection_type,search_attributes," +
	"items.search_attributes.best_keyword,items.search_attributes.relevance,items.adm_div,items.city_alias," +
	"items.region_id,items.segment_id,items.reviews,items.point,request_type,context_rubrics,query_context," +
	"items.links,items.name_ex,items.name_back,items.org,items.group,items.external_content,items.comment," +
	"items.ads.options,items.email_for_sending.allowed,items.stat,items.description,items.geometry.centroid," +
	"items.geometry.selection,items.geometry.style,items.timezone_offset,items.context,items.address," +
	"items.is_paid,items.access,items.access_comment,items.for_trucks,items.is_incentive,items.paving_type," +
	"items.capacity,items.schedule,items.schedule_special,items.floors,items.floor_id,items.floor_plans,dym," +
	"ad,items.rubrics,items.routes,items.reply_rate,items.purpose,items.purpose_code,items.attribute_groups," +
	"items.route_logo,items.has_goods,items.has_apartments_info,items.has_pinned_goods,items.has_realty," +
	"items.has_payments,items.is_promoted,items.delivery,items.order_with_cart,search_type,items.has_discount," +
	"items.metarubrics,items.detailed_subtype,items.temporary_unavailable_atm_services,items.poi_category," +
	"items.has_ads_model,items.vacancies,items.search_attributes.external_source,items.summary"

// ListPageSize is the page size requested for rewritten searches
const ListPageSize = 12

// listHashParams are hashed after the path, in this order
var listHashParams = []string{
	"allow_deleted", "fields", "key", "locale", "page", "page_size", "q",
	"search_device_type", "search_user_hash", "shv", "stat[sid]", "stat[user]",
	"type", "viewpoint1", "viewpoint2",
}

var markersDropped = map[string]bool{
	"map_width":          true,
	"map_height":         true,
	"is_viewport_change": true,
	"fields":             true,
}

// IsMarkersURL reports whether rawURL targets the clustered markers endpoint
func IsMarkersURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, MarkersPath)
}

func parseOrdered(raw string) (query, error) {
	var q query
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		q = append(q, [2]string{key, val})
	}
	return q, nil
}

func (q query) get(k string) string {
	for _, kv := range q {
		if kv[0] == k {
			return kv[1]
		}
	}
	return ""
}

// SignListURL turns an observed markers URL into a signed search URL for the
// first page of places in the same viewport. Absent optional parameters hash
// as empty strings; key and locale are required.
func SignListURL(markersURL string, params entity.SecretParams) (string, error) {
	if !params.Complete() {
		return "", ErrMissingSecret
	}

	if !IsMarkersURL(markersURL) {
		return "", fmt.Errorf("signing: %q is not a markers url", markersURL)
	}
	u, err := url.Parse(markersURL)
	if err != nil {
		return "", fmt.Errorf("signing: parse markers url: %w", err)
	}

	src, err := parseOrdered(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("signing: parse markers query: %w", err)
	}

	var q query
	for _, kv := range src {
		if !markersDropped[kv[0]] {
			q = append(q, kv)
		}
	}
	q.set("fields", ListFields)
	q.set("page_size", strconv.Itoa(ListPageSize))
	q.set("page", "1")

	for _, name := range []string{"key", "locale"} {
		if q.get(name) == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
		}
	}

	var b strings.Builder
	b.WriteString(ListPath)
	for _, name := range listHashParams {
		b.WriteString(q.get(name))
	}
	b.WriteString(params.Salt)
	q.set("r", strconv.FormatUint(uint64(Hash(b.String(), params)), 10))

	path := strings.TrimSuffix(u.Path, MarkersPath) + ListPath
	return u.Scheme + "://" + u.Host + path + "?" + q.encode(), nil
}
