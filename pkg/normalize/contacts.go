// Package normalize turns raw catalog detail records into canonical items.
//
// Every function here is total: missing or malformed input yields empty
// strings and empty slices, never an error or a panic.
package normalize

// ContactKind is the closed set of contact buckets
type ContactKind int

const (
	// KindOther collects every type the catalog may add later
	KindOther ContactKind = iota
	KindPhone
	KindWebsite
	KindEmail
)

// KindOf maps the catalog's type tag to a bucket
func KindOf(tag string) ContactKind {
	switch tag {
	case "phone":
		return KindPhone
	case "website":
		return KindWebsite
	case "email":
		return KindEmail
	default:
		return KindOther
	}
}

// RawContact is one entry of a contact group
type RawContact struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Value     string `json:"value"`
	URL       string `json:"url"`
	PrintText string `json:"print_text"`
}

// ContactGroup is a group of contacts as returned by the catalog
type ContactGroup struct {
	Contacts []RawContact `json:"contacts"`
}

// Contacts are contact values partitioned by kind
type Contacts struct {
	Phones   []string
	Websites []string
	Emails   []string
	Social   []string
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// value picks the field that carries the contact for its kind
func (c RawContact) value() string {
	switch KindOf(c.Type) {
	case KindPhone:
		return firstNonEmpty(c.Text, c.Value)
	case KindWebsite:
		return firstNonEmpty(c.URL, c.Value)
	case KindEmail:
		return c.Value
	default:
		return firstNonEmpty(c.URL, c.Value, c.Text)
	}
}

// CategorizeContacts partitions contact groups into phones, websites, emails and social links
func CategorizeContacts(groups []ContactGroup) Contacts {
	out := Contacts{
		Phones:   []string{},
		Websites: []string{},
		Emails:   []string{},
		Social:   []string{},
	}
	for _, g := range groups {
		for _, c := range g.Contacts {
			v := c.value()
			if v == "" {
				continue
			}
			switch KindOf(c.Type) {
			case KindPhone:
				out.Phones = append(out.Phones, v)
			case KindWebsite:
				out.Websites = append(out.Websites, v)
			case KindEmail:
				out.Emails = append(out.Emails, v)
			case KindOther:
				out.Social = append(out.Social, v)
			}
		}
	}
	return out
}
