package usecase

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

const (
	classificationSnippetRunes = 2000

	defaultParsedConfidence = 50
	unparseableReasoning    = "unparseable"
)

// KeywordClassifier is the deterministic keyword strategy. It never fails and
// makes no external call.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (KeywordClassifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	lower := strings.ToLower(text)
	rules := []struct {
		category domain.Category
		keywords []string
	}{
		{domain.CategoryMedicalRecords, []string{"medical", "hospital"}},
		{domain.CategoryPersonalInjury, []string{"injury", "accident"}},
	}

	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return domain.Classification{
					Category:   rule.category,
					Confidence: 100,
					Reasoning:  fmt.Sprintf("matched keyword %q", keyword),
				}, nil
			}
		}
	}

	return domain.Classification{
		Category:   domain.CategoryOthers,
		Confidence: defaultParsedConfidence,
		Reasoning:  "no category keywords found",
	}, nil
}

// GenerativeClassifier asks a text generator for a labeled classification and
// parses the reply leniently.
type GenerativeClassifier struct {
	generator ports.TextGenerator
}

func NewGenerativeClassifier(generator ports.TextGenerator) *GenerativeClassifier {
	return &GenerativeClassifier{generator: generator}
}

func (c *GenerativeClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	reply, err := c.generator.Generate(ctx, buildClassificationPrompt(text))
	if err != nil {
		return domain.Classification{}, err
	}
	return parseClassificationReply(reply), nil
}

func buildClassificationPrompt(text string) string {
	snippet := text
	if runes := []rune(snippet); len(runes) > classificationSnippetRunes {
		snippet = string(runes[:classificationSnippetRunes])
	}

	return `You are an insurance claim document classifier.
Classify the document into exactly one of: medical_records, personal_injury, others.
Answer with exactly three lines and nothing else:
Classification: <medical_records|personal_injury|others>
Confidence: <integer from 0 to 100>
Reasoning: <one sentence>

Document:
` + snippet
}

var (
	replyFieldRe = regexp.MustCompile(`(?i)^(classification|category|confidence|reasoning|reason)\s*[:=]\s*(.*)$`)
	numberRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func parseClassificationReply(reply string) domain.Classification {
	result := domain.Classification{
		Category:   domain.CategoryOthers,
		Confidence: defaultParsedConfidence,
		Reasoning:  unparseableReasoning,
		Degraded:   true,
	}

	var reasoning []string
	inReasoning := false

	for _, raw := range strings.Split(reply, "\n") {
		line := cleanReplyLine(raw)
		if line == "" {
			continue
		}

		match := replyFieldRe.FindStringSubmatch(line)
		if match == nil {
			if inReasoning {
				reasoning = append(reasoning, line)
			}
			continue
		}

		label := strings.ToLower(match[1])
		value := strings.TrimSpace(match[2])
		inReasoning = false

		switch label {
		case "classification", "category":
			if category, ok := domain.ParseCategory(value); ok {
				result.Category = category
				result.Degraded = false
			}
		case "confidence":
			if confidence, ok := parseConfidence(value); ok {
				result.Confidence = confidence
			}
		case "reasoning", "reason":
			inReasoning = true
			if value != "" {
				reasoning = append(reasoning, value)
			}
		}
	}

	if len(reasoning) > 0 {
		result.Reasoning = strings.Join(reasoning, " ")
	}
	return result
}

func cleanReplyLine(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*#>• \t")
	return strings.TrimSpace(line)
}

// parseConfidence accepts "85", "85%", "0.85" and "85/100".
func parseConfidence(value string) (int, bool) {
	number := numberRe.FindString(value)
	if number == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(number, ".") && parsed <= 1.0 && !strings.Contains(value, "%") {
		parsed *= 100
	}
	return clampConfidence(int(math.Round(parsed))), true
}
