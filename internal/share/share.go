// Package share builds the text and social links offered next to a result.
package share

import (
	"net/url"

	"github.com/example/insect-id/internal/insect"
)

const (
	appName        = "Insect Identifier Pro"
	excerptRunes   = 100
	twitterIntent  = "https://twitter.com/intent/tweet"
	facebookSharer = "https://www.facebook.com/sharer/sharer.php"
)

// Links is what a client needs to share one identification.
type Links struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	Twitter  string `json:"twitter"`
	Facebook string `json:"facebook"`
}

// Text returns the share blurb for a record.
func Text(rec insect.IdentificationRecord) string {
	return "Just identified a " + rec.CommonName + " (" + rec.ScientificName + ") using " + appName + "! " +
		excerpt(rec.Description) + "..."
}

// Build assembles the share text and the Twitter and Facebook URLs pointing
// back at pageURL.
func Build(rec insect.IdentificationRecord, pageURL string) Links {
	text := Text(rec)

	tw := url.Values{}
	tw.Set("text", text)
	tw.Set("url", pageURL)

	fb := url.Values{}
	fb.Set("u", pageURL)
	fb.Set("quote", text)

	return Links{
		Title:    "Identified: " + rec.CommonName,
		Text:     text,
		URL:      pageURL,
		Twitter:  twitterIntent + "?" + tw.Encode(),
		Facebook: facebookSharer + "?" + fb.Encode(),
	}
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return string(runes[:excerptRunes])
}
