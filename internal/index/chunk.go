package index

import "unicode"

// MaxChunkLength is the largest number of characters stored in one field value.
const MaxChunkLength = 30000

// Chunk splits text into segments of at most max characters. A boundary that
// would fall inside a run of letters or digits is moved back to the start of
// that run; a run longer than max is split hard.
func Chunk(text string, max int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return []string{text}
	}

	var chunks []string
	start := 0
	for len(runes)-start > max {
		end := start + max
		for end > start && isWordRune(runes[end-1]) && isWordRune(runes[end]) {
			end--
		}
		if end == start {
			end = start + max
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return append(chunks, string(runes[start:]))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
