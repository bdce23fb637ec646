package entity

// Rating holds the review summary of a place
type Rating struct {
	Value       float64 `json:"value"`
	Count       int     `json:"count"`
	ReviewCount int     `json:"reviewCount"`
}

// CanonicalItem is the normalized record of one collected place.
// List fields are never nil so that exports stay total.
type CanonicalItem struct {
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Specialization   string   `json:"specialization"`
	FullName         string   `json:"fullName"`
	Address          string   `json:"address"`
	Rating           *Rating  `json:"rating"`
	Phones           []string `json:"phones"`
	NormalizedPhones []string `json:"normalizedPhones"`
	MobilePhones     []string `json:"mobilePhones"`
	Websites         []string `json:"websites"`
	Emails           []string `json:"emails"`
	Telegram         string   `json:"telegram"`
	TelegramUsername string   `json:"telegramUsername"`
	VK               string   `json:"vk"`
	WhatsApp         string   `json:"whatsapp"`
	OtherSocials     []string `json:"otherSocials"`
	WorkingHours     string   `json:"workingHours"`
	Rubrics          string   `json:"rubrics"`
	Description      string   `json:"description"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Link2GIS         string   `json:"link2gis"`
	LinkYandex       string   `json:"linkYandex"`
	OrgName          string   `json:"orgName"`
}

// Fill replaces nil list fields with empty slices.
// Items decoded from older persisted blobs may lack some lists.
func (it *CanonicalItem) Fill() {
	for _, p := range []*[]string{
		&it.Phones, &it.NormalizedPhones, &it.MobilePhones,
		&it.Websites, &it.Emails, &it.OtherSocials,
	} {
		if *p == nil {
			*p = []string{}
		}
	}
}

// RatingValue returns the rating value or 0 when the place has no rating
func (it *CanonicalItem) RatingValue() float64 {
	if it.Rating == nil {
		return 0
	}
	return it.Rating.Value
}

// HasCoordinates reports whether both coordinates are present
func (it *CanonicalItem) HasCoordinates() bool {
	return it.Latitude != nil && it.Longitude != nil
}

// HasAnySocial reports whether the place has at least one messenger or social link
func (it *CanonicalItem) HasAnySocial() bool {
	return it.Telegram != "" || it.VK != "" || it.WhatsApp != "" || len(it.OtherSocials) > 0
}

// Stats summarizes the contact coverage of a set of items
type Stats struct {
	Total            int `json:"total"`
	WithPhones       int `json:"withPhones"`
	WithMobilePhones int `json:"withMobilePhones"`
	WithEmails       int `json:"withEmails"`
	WithSites        int `json:"withSites"`
	WithTelegram     int `json:"withTelegram"`
	WithVK           int `json:"withVK"`
	WithWhatsApp     int `json:"withWhatsApp"`
}

// Add accounts one item in the stats
func (s *Stats) Add(it *CanonicalItem) {
	s.Total++
	if len(it.Phones) > 0 {
		s.WithPhones++
	}
	if len(it.MobilePhones) > 0 {
		s.WithMobilePhones++
	}
	if len(it.Emails) > 0 {
		s.WithEmails++
	}
	if len(it.Websites) > 0 {
		s.WithSites++
	}
	if it.Telegram != "" {
		s.WithTelegram++
	}
	if it.VK != "" {
		s.WithVK++
	}
	if it.WhatsApp != "" {
		s.WithWhatsApp++
	}
}
