package ingest

import (
	"strings"

	"github.com/AngelCh415/moi-etl/internal/models"
)

// Sniff guesses which platform produced a file, first from the header text
// and then from the filename.
func Sniff(f SourceFile) (models.Platform, bool) {
	head := strings.ToLower(strings.Join(HeadLines(f.Content, 10), "\n"))
	switch {
	case strings.Contains(head, "reporting starts") || strings.Contains(head, "ad set name"):
		return models.PlatformMeta, true
	case strings.Contains(head, "online store visitors") || strings.Contains(head, "utm campaign"):
		return models.PlatformShopify, true
	case strings.Contains(head, "avg. cpm") || (strings.Contains(head, "campaign") && strings.Contains(head, "cost")):
		return models.PlatformGoogle, true
	}
	name := strings.ToLower(f.Name)
	switch {
	case strings.Contains(name, "meta") || strings.Contains(name, "facebook"):
		return models.PlatformMeta, true
	case strings.Contains(name, "google"):
		return models.PlatformGoogle, true
	case strings.Contains(name, "shopify"):
		return models.PlatformShopify, true
	}
	return "", false
}

// Assign places a file into the slot for its platform. It reports false when
// the platform cannot be told.
func (fs *Files) Assign(f SourceFile) bool {
	p, ok := Sniff(f)
	if !ok {
		return false
	}
	switch p {
	case models.PlatformMeta:
		fs.Meta = &f
	case models.PlatformGoogle:
		fs.Google = &f
	case models.PlatformShopify:
		fs.Shopify = &f
	}
	return true
}
