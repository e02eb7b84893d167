package worker

import "strings"

const thinkEnd = "</think>"

// stripThinking drops everything up to and including the first closing think
// marker. Text without the marker is returned unchanged.
func stripThinking(text string) string {
	i := strings.Index(text, thinkEnd)
	if i < 0 {
		return text
	}
	return strings.TrimSpace(text[i+len(thinkEnd):])
}
