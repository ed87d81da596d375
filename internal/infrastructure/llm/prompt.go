package llm

import "strings"

// OCRInstruction is sent alongside the document image to vision models.
const OCRInstruction = "Extract text from this image. Return only the extracted text, preserving line breaks."

// ResponseText joins candidate text parts and trims surrounding whitespace and
// markdown code fences.
func ResponseText(parts []string) string {
	text := strings.TrimSpace(strings.Join(parts, ""))
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```text")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
