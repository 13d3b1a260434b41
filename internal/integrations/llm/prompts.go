package llm

import (
	"fmt"
	"log"
	"os"
	"strings"
	"unicode/utf8"

	"triagebot/internal/domain"
)

const maxTriageGuidanceChars = 8000

func buildTriagePrompts(ticketText, guidance string) (string, string) {
	guidanceBlock := ""
	if strings.TrimSpace(guidance) != "" {
		guidanceBlock = "\nTeam guidance (hints only; the output contract below still applies):\n" + guidance + "\n"
	}

	systemPrompt := fmt.Sprintf(`You are a support triage assistant for a SaaS company.

For each customer ticket:
- identify the underlying issue, not just the keywords
- classify the issue category
- decide the urgency
- suggest next actions for a human support agent
- explain your reasoning clearly and concisely
%s
You MUST return a valid JSON object only.
No markdown. No extra text.`, guidanceBlock)

	userPrompt := fmt.Sprintf(`Analyze the following customer support ticket.

Ticket:
"""
%s
"""

Return a JSON object with exactly these fields:
- issue (string)
- category (one of: %s)
- urgency (one of: %s)
- suggested_actions (array of strings)
- explanation (string)
- confidence (number between 0 and 1)`,
		ticketText,
		strings.Join(domain.Categories(), ", "),
		strings.Join(domain.Urgencies(), ", "),
	)
	return systemPrompt, userPrompt
}

func loadTriageGuidance(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Optional file: no hard failure if missing.
		log.Printf("llm triage guidance skipped path=%s err=%v", path, err)
		return ""
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxTriageGuidanceChars {
		cut := maxTriageGuidanceChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n...(truncated)"
	}
	return text
}
