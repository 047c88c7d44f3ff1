package engine

import "strings"

// Tesseract names languages by ISO 639-2 code; cloud engines want BCP-47.
var bcp47 = map[string]string{
	"eng":     "en",
	"deu":     "de",
	"fra":     "fr",
	"spa":     "es",
	"ita":     "it",
	"por":     "pt",
	"nld":     "nl",
	"rus":     "ru",
	"jpn":     "ja",
	"kor":     "ko",
	"chi_sim": "zh-Hans",
	"chi_tra": "zh-Hant",
	"ara":     "ar",
	"hin":     "hi",
}

// LanguageHints converts configured languages to BCP-47 tags, passing
// through anything it does not recognize.
func LanguageHints(langs []string) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if tag, ok := bcp47[strings.ToLower(l)]; ok {
			out = append(out, tag)
			continue
		}
		out = append(out, l)
	}
	return out
}
