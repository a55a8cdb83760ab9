package retrieval

import "strings"

// chunk sizing mirrors the usual recursive text-splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// SplitText cuts text into chunks of at most size bytes with roughly overlap
// bytes carried between consecutive chunks. Cuts prefer paragraph breaks,
// then sentence ends, then whitespace, falling back to a hard cut only for
// unbroken runs.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(text) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint finds the best cut position in text[start:limit], scanning
// backwards from limit. Paragraph breaks beat sentence ends beat whitespace.
func cutPoint(text string, start, limit int) int {
	window := text[start:limit]
	// Never cut in the first half of the window; tiny chunks fragment
	// retrieval scores.
	floor := len(window) / 2

	if idx := strings.LastIndex(window, "\n\n"); idx > floor {
		return start + idx
	}
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(window, sep); idx > floor {
			return start + idx + 1
		}
	}
	if idx := strings.LastIndexAny(window, " \t\n"); idx > floor {
		return start + idx
	}
	return limit
}
