package service

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a professional legal attorney drafting formal legal letters. " +
	"Always produce professional, legally sound content with proper formatting."

var intakeFields = []string{
	"senderName",
	"senderAddress",
	"recipientName",
	"recipientAddress",
	"issueDescription",
	"desiredOutcome",
}

var promptRequirements = []string{
	"- Write a professional, legally sound letter (300-500 words)",
	"- Include proper date and addresses",
	"- Present facts clearly",
	"- State clear demands with deadlines",
	"- Maintain professional legal tone throughout",
	"- Format as a complete letter with proper structure",
}

// buildUserPrompt renders the intake into the fixed prompt layout. Missing
// fields and an absent amount are left out.
func buildUserPrompt(letterType string, intake map[string]any) string {
	lines := []string{
		fmt.Sprintf("Draft a professional %s letter with the following details:", letterType),
	}
	for _, field := range intakeFields {
		if value := intakeString(intake, field); value != "" {
			lines = append(lines, field+": "+value)
		}
	}
	if amount := intakeString(intake, "amountDemanded"); amount != "" {
		lines = append(lines, "Amount: $"+amount)
	}
	lines = append(lines, "Requirements:")
	lines = append(lines, promptRequirements...)
	lines = append(lines, "Return only the letter content, no additional commentary or explanations.")
	return strings.Join(lines, "\n")
}

func intakeString(intake map[string]any, key string) string {
	raw, ok := intake[key]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}
