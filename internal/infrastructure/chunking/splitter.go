package chunking

import "strings"

// LineSplitter emits one chunk per line of extracted text. Lines longer than
// MaxLineRunes are further cut into overlapping windows. Zero, the default,
// disables windowing so stored records keep one chunk per source line.
type LineSplitter struct {
	MaxLineRunes int
	Overlap      int
}

func NewLineSplitter(maxLineRunes, overlap int) *LineSplitter {
	if maxLineRunes < 0 {
		maxLineRunes = 0
	}
	if overlap < 0 {
		overlap = 0
	}
	if maxLineRunes > 0 && overlap >= maxLineRunes {
		overlap = maxLineRunes / 4
	}
	return &LineSplitter{
		MaxLineRunes: maxLineRunes,
		Overlap:      overlap,
	}
}

// Split keeps blank lines so chunk order mirrors the source line order.
func (s *LineSplitter) Split(text string) []string {
	if text == "" {
		return []string{}
	}

	lines := strings.Split(text, "\n")
	if s.MaxLineRunes <= 0 {
		return lines
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, s.window(line)...)
	}
	return out
}

func (s *LineSplitter) window(line string) []string {
	runes := []rune(line)
	if len(runes) <= s.MaxLineRunes {
		return []string{line}
	}

	step := s.MaxLineRunes - s.Overlap
	if step <= 0 {
		step = s.MaxLineRunes
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.MaxLineRunes
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
