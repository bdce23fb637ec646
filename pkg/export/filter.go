// Package export prepares collected items for output: filtering, duplicate
// removal, flattening into rows and batching. Everything here is pure.
package export

import "github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"

type predicate func(*entity.CanonicalItem) bool

// predicates returns one predicate per active filter option
func predicates(f entity.Filter) []predicate {
	var ps []predicate
	if f.MinRating > 0 {
		threshold := f.MinRating
		ps = append(ps, func(it *entity.CanonicalItem) bool { return it.RatingValue() >= threshold })
	}
	if f.OnlyWithPhone {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return len(it.Phones) > 0 })
	}
	if f.OnlyMobilePhones {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return len(it.MobilePhones) > 0 })
	}
	if f.OnlyWithEmail {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return len(it.Emails) > 0 })
	}
	if f.OnlyWithSite {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return len(it.Websites) > 0 })
	}
	if f.OnlyWithTelegram {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return it.Telegram != "" })
	}
	if f.OnlyWithAnySocial {
		ps = append(ps, (*entity.CanonicalItem).HasAnySocial)
	}
	if f.NoSiteWithSocial {
		ps = append(ps, func(it *entity.CanonicalItem) bool { return len(it.Websites) == 0 && it.HasAnySocial() })
	}
	return ps
}

// ApplyFilters returns the items matching every active option, in input order
func ApplyFilters(items []entity.CanonicalItem, f entity.Filter) []entity.CanonicalItem {
	if !f.Active() {
		return append([]entity.CanonicalItem(nil), items...)
	}
	ps := predicates(f)
	out := make([]entity.CanonicalItem, 0, len(items))
next:
	for i := range items {
		for _, p := range ps {
			if !p(&items[i]) {
				continue next
			}
		}
		out = append(out, items[i])
	}
	return out
}
