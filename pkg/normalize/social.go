package normalize

import (
	"net/url"
	"strings"
)

// Socials is the classified form of a list of social links
type Socials struct {
	Telegram         string
	TelegramUsername string
	VK               string
	WhatsApp         string
	Other            []string
}

type socialKind int

const (
	socialOther socialKind = iota
	socialTelegram
	socialVK
	socialWhatsApp
)

func classifySocial(link string) socialKind {
	l := strings.ToLower(link)
	switch {
	case strings.HasPrefix(l, "t.me/"), strings.Contains(l, "/t.me/"), strings.Contains(l, "telegram."):
		return socialTelegram
	case strings.Contains(l, "vk.com"), strings.Contains(l, "vk.ru"):
		return socialVK
	case strings.Contains(l, "wa.me"), strings.Contains(l, "whatsapp"):
		return socialWhatsApp
	default:
		return socialOther
	}
}

// TelegramHandle extracts "@name" from a telegram link, or "" for invite links
// and links without a path.
func TelegramHandle(link string) string {
	raw := link
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	// t.me/s/<name> is the public preview of a channel
	if len(segs) > 1 && strings.EqualFold(segs[0], "s") {
		segs = segs[1:]
	}
	seg := strings.TrimPrefix(segs[0], "@")
	if seg == "" || strings.HasPrefix(seg, "+") || strings.EqualFold(seg, "joinchat") {
		return ""
	}
	return "@" + seg
}

// ClassifySocials fills one slot per known network with the first matching
// link; everything else, including repeats of a filled slot, goes to Other
// with its original casing.
func ClassifySocials(links []string) Socials {
	out := Socials{Other: []string{}}
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		switch classifySocial(link) {
		case socialTelegram:
			if out.Telegram == "" {
				out.Telegram = link
				out.TelegramUsername = TelegramHandle(link)
				continue
			}
		case socialVK:
			if out.VK == "" {
				out.VK = link
				continue
			}
		case socialWhatsApp:
			if out.WhatsApp == "" {
				out.WhatsApp = link
				continue
			}
		}
		out.Other = append(out.Other, link)
	}
	return out
}
