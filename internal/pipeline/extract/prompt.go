package extract

import (
	"fmt"
	"strings"
	"time"

	"eventscout-backend/internal/event/domain"
)

const maxBodyChars = 4000

// buildPrompt renders one chunk of emails plus the user's interests
// into a single extraction prompt. The schema and validation rules are
// spelled out in the prompt itself so the model does the first pass of
// filtering; validate() re-checks everything it claims.
func buildPrompt(candidates []domain.CandidateEmail, interests []string) string {
	var b strings.Builder

	b.WriteString("You are an assistant that extracts upcoming events from emails.\n")
	b.WriteString("Analyze the emails below and return ONLY a JSON object, no markdown, of the form:\n")
	b.WriteString(`{"events": [{"source_message_id": string, "title": string, "location": string, "summary": string, "link": string, "start_datetime": string, "end_datetime": string, "relevant_interests": [string], "valid": bool}]}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only include emails that announce or invite to a concrete upcoming event.\n")
	b.WriteString("- source_message_id must be the id of the email the event came from.\n")
	b.WriteString("- start_datetime and end_datetime must be ISO 8601 (RFC 3339). Omit end_datetime if unknown.\n")
	b.WriteString("- Set valid to false for anything that is not a real event or has no determinable start time.\n")
	b.WriteString("- summary is a one/two sentence description. Leave location and link empty if absent.\n")

	if len(interests) > 0 {
		b.WriteString("- relevant_interests lists which of the user's interests the event matches, chosen from: ")
		b.WriteString(strings.Join(interests, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\nEmails:\n")
	for i, c := range candidates {
		body := c.BodyText
		if len(body) > maxBodyChars {
			body = body[:maxBodyChars]
		}
		fmt.Fprintf(&b, "--- Email %d ---\nid: %s\nsubject: %s\nreceived: %s\nbody:\n%s\n\n",
			i+1, c.MessageID, c.Subject, c.ReceivedAt.Format(time.RFC3339), body)
	}

	return b.String()
}
