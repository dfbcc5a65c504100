// Package i18n holds the progress and banner strings shown to users.
//
// Indonesian is the default language; English is provided as a fallback for
// non-Indonesian locales.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	Starting          = "progress.starting"
	LoadingCategories = "progress.categories"
	SavedCategories   = "progress.categories.saved"
	LoadingNewest     = "progress.newest"
	SavedNewest       = "progress.newest.saved"
	LoadingPopular    = "progress.popular"
	SavedPopular      = "progress.popular.saved"
	LoadingFeatured   = "progress.featured"
	SavedFeatured     = "progress.featured.saved"
	SavingDetails     = "progress.details"
	SavedDetails      = "progress.details.saved"
	LoadingImages     = "progress.images"
	ImageProgress     = "progress.images.count"
	Done              = "progress.done"
	Offline           = "error.offline"
	BannerOffline     = "banner.offline"
	BannerRestored    = "banner.restored"
	BannerSynced      = "banner.synced"
	BannerFailed      = "banner.failed"
)

// Indonesian is the default language.
var Indonesian = language.Indonesian

var messages = map[language.Tag]map[string]string{
	language.Indonesian: {
		Starting:          "Memulai proses caching...",
		LoadingCategories: "Memuat kategori berita...",
		SavedCategories:   "%d kategori tersimpan",
		LoadingNewest:     "Memuat berita terbaru...",
		SavedNewest:       "%d berita terbaru tersimpan",
		LoadingPopular:    "Memuat berita populer...",
		SavedPopular:      "%d berita populer tersimpan",
		LoadingFeatured:   "Memuat berita unggulan...",
		SavedFeatured:     "%d berita unggulan tersimpan",
		SavingDetails:     "Menyimpan detail artikel...",
		SavedDetails:      "%d detail artikel tersimpan",
		LoadingImages:     "Memuat gambar...",
		ImageProgress:     "Memuat gambar (%d/%d)",
		Done:              "Selesai!",
		Offline:           "Tidak ada koneksi internet",
		BannerOffline:     "Anda sedang offline. Menampilkan konten yang tersimpan.",
		BannerRestored:    "Koneksi internet kembali.",
		BannerSynced:      "Konten siap dibaca offline (%d item).",
		BannerFailed:      "Gagal menyimpan konten offline: %s",
	},
	language.English: {
		Starting:          "Starting caching...",
		LoadingCategories: "Loading news categories...",
		SavedCategories:   "%d categories saved",
		LoadingNewest:     "Loading latest news...",
		SavedNewest:       "%d latest articles saved",
		LoadingPopular:    "Loading popular news...",
		SavedPopular:      "%d popular articles saved",
		LoadingFeatured:   "Loading featured news...",
		SavedFeatured:     "%d featured articles saved",
		SavingDetails:     "Saving article details...",
		SavedDetails:      "%d article details saved",
		LoadingImages:     "Loading images...",
		ImageProgress:     "Loading images (%d/%d)",
		Done:              "Done!",
		Offline:           "No internet connection",
		BannerOffline:     "You are offline. Showing saved content.",
		BannerRestored:    "Internet connection restored.",
		BannerSynced:      "Content is ready for offline reading (%d items).",
		BannerFailed:      "Failed to save offline content: %s",
	},
}

var (
	cat     catalog.Catalog
	matcher language.Matcher
)

func init() {
	b := catalog.NewBuilder(catalog.Fallback(Indonesian))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	cat = b
	matcher = language.NewMatcher([]language.Tag{language.Indonesian, language.English})
}

// Printer formats messages for one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a Printer for lang, a BCP 47 tag such as "id" or
// "en-US". Unknown or empty tags fall back to Indonesian.
func NewPrinter(lang string) *Printer {
	tag := Indonesian
	if lang = strings.TrimSpace(lang); lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			_, idx, conf := matcher.Match(parsed)
			if conf != language.No {
				tag = []language.Tag{language.Indonesian, language.English}[idx]
			}
		}
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Sprintf formats the message for key.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Language returns the resolved language tag.
func (p *Printer) Language() language.Tag {
	return p.tag
}

// Supported reports whether lang resolves to a language with a catalog.
func Supported(lang string) bool {
	parsed, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return false
	}
	_, _, conf := matcher.Match(parsed)
	return conf != language.No
}
