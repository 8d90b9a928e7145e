package share

import (
	"net/url"
	"sort"
	"strings"
)

// Adapter opens one platform's posting surface. Platforms with a web intent
// get the caption prefilled; the rest only get their upload page.
type Adapter struct {
	Name      string
	Label     string
	Intent    func(text, link string) string
	UploadURL string
}

// URL returns the surface to open for text and an optional link.
func (a Adapter) URL(text, link string) string {
	if a.Intent != nil {
		return a.Intent(text, link)
	}
	return a.UploadURL
}

func withQuery(base string, params ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(params); i += 2 {
		if params[i+1] != "" {
			q.Set(params[i], params[i+1])
		}
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// Adapters is keyed by lowercase platform name.
var Adapters = map[string]Adapter{
	"x": {
		Name:  "x",
		Label: "X (Twitter)",
		Intent: func(text, link string) string {
			return withQuery("https://twitter.com/intent/tweet", "text", text, "url", link)
		},
	},
	"facebook": {
		Name:  "facebook",
		Label: "Facebook",
		Intent: func(text, link string) string {
			if link == "" {
				return "https://www.facebook.com/"
			}
			return withQuery("https://www.facebook.com/sharer/sharer.php", "u", link, "quote", text)
		},
	},
	"linkedin": {
		Name:  "linkedin",
		Label: "LinkedIn",
		Intent: func(text, link string) string {
			if link == "" {
				return withQuery("https://www.linkedin.com/feed/", "shareActive", "true", "text", text)
			}
			return withQuery("https://www.linkedin.com/sharing/share-offsite/", "url", link)
		},
	},
	"reddit": {
		Name:  "reddit",
		Label: "Reddit",
		Intent: func(text, link string) string {
			title, _, _ := strings.Cut(text, "\n")
			if link == "" {
				return withQuery("https://www.reddit.com/submit", "title", title, "text", text, "type", "TEXT")
			}
			return withQuery("https://www.reddit.com/submit", "title", title, "url", link)
		},
	},
	"pinterest": {
		Name:  "pinterest",
		Label: "Pinterest",
		Intent: func(text, link string) string {
			return withQuery("https://www.pinterest.com/pin/create/button/", "url", link, "media", link, "description", text)
		},
	},
	"whatsapp": {
		Name:  "whatsapp",
		Label: "WhatsApp",
		Intent: func(text, link string) string {
			if link != "" {
				text += "\n\n" + link
			}
			return withQuery("https://wa.me/", "text", text)
		},
	},
	"telegram": {
		Name:  "telegram",
		Label: "Telegram",
		Intent: func(text, link string) string {
			return withQuery("https://t.me/share/url", "url", link, "text", text)
		},
	},
	"threads": {
		Name:  "threads",
		Label: "Threads",
		Intent: func(text, link string) string {
			return withQuery("https://www.threads.net/intent/post", "text", text, "url", link)
		},
	},
	"instagram": {Name: "instagram", Label: "Instagram", UploadURL: "https://www.instagram.com/"},
	"tiktok":    {Name: "tiktok", Label: "TikTok", UploadURL: "https://www.tiktok.com/upload"},
	"youtube":   {Name: "youtube", Label: "YouTube", UploadURL: "https://studio.youtube.com/"},
}

var aliases = map[string]string{
	"twitter":   "x",
	"x/twitter": "x",
	"ig":        "instagram",
	"yt":        "youtube",
	"shorts":    "youtube",
}

// Lookup finds the adapter for a platform name, case-insensitively.
func Lookup(name string) (Adapter, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	a, ok := Adapters[key]
	return a, ok
}

// Names returns the adapter names, sorted.
func Names() []string {
	names := make([]string, 0, len(Adapters))
	for name := range Adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
