package export

import (
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
)

// RemoveDuplicates drops every item that shares a normalized phone number or
// a telegram handle (case-insensitive) with an earlier item. The first
// occurrence wins, so the result depends on input order.
//
// Shared reception numbers and franchise handles merge distinct places; this
// is a known approximation.
func RemoveDuplicates(items []entity.CanonicalItem) []entity.CanonicalItem {
	seenPhones := make(map[string]bool)
	seenHandles := make(map[string]bool)
	out := make([]entity.CanonicalItem, 0, len(items))

	for _, it := range items {
		handle := strings.ToLower(it.TelegramUsername)

		dup := handle != "" && seenHandles[handle]
		for _, p := range it.NormalizedPhones {
			if p != "" && seenPhones[p] {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		for _, p := range it.NormalizedPhones {
			if p != "" {
				seenPhones[p] = true
			}
		}
		if handle != "" {
			seenHandles[handle] = true
		}
		out = append(out, it)
	}
	return out
}
