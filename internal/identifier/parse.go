package identifier

import (
	"regexp"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/example/insect-id/internal/insect"
)

// notInsectPatterns match explicit negatives only. Hedged positives such as
// "appears to show a honeybee" are not negatives.
var notInsectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bnot an? (insect|arthropod)\b`),
	regexp.MustCompile(`\bno (insects?|arthropods?) (is |are )?(visible|present|shown|depicted|in the (image|photo|picture))\b`),
	regexp.MustCompile(`\b(does not|doesn't|do not|don't) (show|contain|depict|include) (an? |any )?(insects?|arthropods?)\b`),
	regexp.MustCompile(`\bis not (an? )?(insect|arthropod)\b`),
}

// ParseResponse converts the model's raw text into a validated record. It
// returns a *ClassificationError of KindNotAnInsect for domain negatives and
// KindMalformed when no complete record can be recovered.
func ParseResponse(text string) (insect.IdentificationRecord, error) {
	obj, ok := FirstJSONObject(text)
	if !ok {
		if signalsNotInsect(text) {
			return insect.IdentificationRecord{}, &ClassificationError{Kind: KindNotAnInsect, Detail: strings.TrimSpace(text)}
		}
		return insect.IdentificationRecord{}, &ClassificationError{Kind: KindMalformed, Detail: "no JSON object in response"}
	}

	var probe struct {
		NotInsect *bool  `json:"notInsect"`
		IsInsect  *bool  `json:"isInsect"`
		Reason    string `json:"reason"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal([]byte(obj), &probe); err != nil {
		return insect.IdentificationRecord{}, &ClassificationError{Kind: KindMalformed, Detail: "decode response", Err: err}
	}
	negative := (probe.NotInsect != nil && *probe.NotInsect) ||
		(probe.IsInsect != nil && !*probe.IsInsect) ||
		(probe.Error != "" && signalsNotInsect(probe.Error))
	if negative {
		return insect.IdentificationRecord{}, &ClassificationError{Kind: KindNotAnInsect, Detail: firstNonEmpty(probe.Reason, probe.Error)}
	}

	var record insect.IdentificationRecord
	if err := json.Unmarshal([]byte(obj), &record); err != nil {
		return insect.IdentificationRecord{}, &ClassificationError{Kind: KindMalformed, Detail: "decode record", Err: err}
	}
	record = record.Normalize()
	if err := record.Validate(); err != nil {
		prose := strings.Replace(text, obj, "", 1)
		if signalsNotInsect(prose) {
			return insect.IdentificationRecord{}, &ClassificationError{Kind: KindNotAnInsect, Detail: strings.TrimSpace(prose)}
		}
		return insect.IdentificationRecord{}, &ClassificationError{Kind: KindMalformed, Detail: "incomplete record", Err: err}
	}
	return record, nil
}

// FirstJSONObject returns the first brace-balanced substring of text that is
// valid JSON. Braces inside string literals are ignored.
func FirstJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchingBrace(text, start); end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func signalsNotInsect(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range notInsectPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
