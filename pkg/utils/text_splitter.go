package utils

import "unicode"

// SplitText cuts a long string into chunks of roughly chunkSize runes
// with the given overlap between consecutive chunks. Cuts prefer a
// whitespace boundary within the last tenth of the chunk so words and
// sentences survive intact where possible.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := softBoundary(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))
	}
	return chunks
}

// softBoundary walks back from end looking for whitespace, giving up
// after a tenth of the chunk to avoid degenerate short chunks.
func softBoundary(runes []rune, start, end int) int {
	limit := end - (end-start)/10
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
