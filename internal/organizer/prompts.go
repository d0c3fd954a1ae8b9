package organizer

import (
	"fmt"
	"strings"
)

// Prompt construction for each negotiation phase. Every prompt declares the
// exact JSON shape expected back so the recovery layer has something to
// aim at even when the model pads the reply with prose.

const systemPromptTemplate = `You are a file organization assistant. You analyze file listings and propose how to reorganize them into a clear folder structure.

Base directory: %s
User intent: %s

Rules:
- Work only with the files you are given; never invent filenames.
- Destinations are relative paths inside the base directory.
- Once you establish a naming or folder pattern for a content type, reuse that exact pattern for every later file of the same type.
- Reply with a single JSON object and no surrounding commentary.`

func buildSystemPrompt(baseDir, intent string) string {
	if intent == "" {
		intent = "organize files into a sensible folder structure"
	}
	return fmt.Sprintf(systemPromptTemplate, baseDir, intent)
}

const analysisFormat = `Reply with JSON:
{
  "categories": {"<category name>": ["<filename>", ...], ...},
  "reasoning": "<one paragraph>",
  "clarification": {"questions": ["<question>", ...]}   // only if something essential is ambiguous
}`

func (n *Negotiation) buildAnalysisPrompt() string {
	var sb strings.Builder

	sb.WriteString("## Files to organize\n\n")
	sb.WriteString("| name | kind | size | modified |\n")
	for _, f := range n.files {
		fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n",
			f.Name, f.Kind(), f.Size, f.ModTime.Format("2006-01-02"))
	}
	sb.WriteString("\n")

	if len(n.approvedPatterns) > 0 {
		sb.WriteString("## Established patterns (reuse these)\n\n")
		for _, p := range n.approvedPatterns {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
		sb.WriteString("\n")
	}

	n.writeClarifications(&sb, PhaseAnalysis)

	sb.WriteString("Group every file into a small set of categories that match the user intent. ")
	sb.WriteString("Every filename must appear in exactly one category.\n\n")
	sb.WriteString(analysisFormat)
	return sb.String()
}

func (n *Negotiation) buildConversationPrompt(message string) string {
	var sb strings.Builder

	sb.WriteString("## Current categorization\n\n")
	n.writeCategories(&sb)
	sb.WriteString("\n## User message\n\n")
	sb.WriteString(message)
	sb.WriteString("\n\n")

	n.writeClarifications(&sb, PhaseConversation)

	sb.WriteString("Adjust the categorization accordingly. Keep categories that were not questioned.\n\n")
	sb.WriteString(analysisFormat)
	return sb.String()
}

const finalFormat = `Reply with JSON:
{
  "suggestions": [
    {"file": "<filename>", "destination": "<relative path>", "reason": "<short reason>", "confidence": <0..1>, "category": "<category>"},
    ...
  ],
  "reasoning": "<one paragraph>"
}`

func (n *Negotiation) buildFinalPrompt() string {
	var sb strings.Builder

	sb.WriteString("## Context\n\n")
	sb.WriteString(n.contextSummary())
	sb.WriteString("\n")

	sb.WriteString("## Files\n\n")
	for _, f := range n.files {
		fmt.Fprintf(&sb, "- %s (%s)\n", f.Name, f.Kind())
	}
	sb.WriteString("\n")

	sb.WriteString("Produce exactly one suggestion per file listed above — no file may be missing. ")
	sb.WriteString("Once a naming or folder pattern is established for a content type, every later file of that type must reuse it. ")
	sb.WriteString("Do not propose any destination matching a rejected path.\n\n")
	sb.WriteString(finalFormat)
	return sb.String()
}

// contextSummary condenses the negotiation state for the final prompt:
// intent, phase, discovered categories, the most recent rejections (at
// most five), approved patterns, and how many clarifications were
// collected.
func (n *Negotiation) contextSummary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Intent: %s\nPhase: %s\n", n.intent, n.phase)

	sb.WriteString("Categories:\n")
	n.writeCategories(&sb)

	if len(n.rejectedPaths) > 0 {
		sb.WriteString("Rejected destinations (most recent):\n")
		start := 0
		if len(n.rejectedPaths) > maxRejectedInSummary {
			start = len(n.rejectedPaths) - maxRejectedInSummary
		}
		for _, p := range n.rejectedPaths[start:] {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}

	if len(n.approvedPatterns) > 0 {
		sb.WriteString("Approved patterns:\n")
		for _, p := range n.approvedPatterns {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}

	if len(n.clarifications) > 0 {
		fmt.Fprintf(&sb, "Clarifications collected: %d\n", len(n.clarifications))
	}

	return sb.String()
}

func (n *Negotiation) writeCategories(sb *strings.Builder) {
	for _, cat := range n.categoryOrder {
		files := n.categories[cat]
		fmt.Fprintf(sb, "- %s (%d): %s\n", cat, len(files), strings.Join(files, ", "))
	}
}

// writeClarifications embeds answered questions for the given phase so a
// retried prompt carries what the user already explained.
func (n *Negotiation) writeClarifications(sb *strings.Builder, phase Phase) {
	var lines []string
	for _, c := range n.clarifications {
		if c.Phase == phase && c.Answer != "" {
			lines = append(lines, fmt.Sprintf("- Q: %s\n  A: %s", c.Question, c.Answer))
		}
	}
	if len(lines) == 0 {
		return
	}
	sb.WriteString("## Clarifications from the user\n\n")
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\n")
}

const maxRejectedInSummary = 5
const maxRejectedInMessage = 3

// rejectionMessage turns feedback into the natural-language turn sent
// through the conversation phase.
func rejectionMessage(fb Feedback) string {
	var sb strings.Builder
	sb.WriteString("The user rejected the current proposal.")
	if len(fb.RejectedPaths) > 0 {
		limit := len(fb.RejectedPaths)
		if limit > maxRejectedInMessage {
			limit = maxRejectedInMessage
		}
		quoted := make([]string, 0, limit)
		for _, p := range fb.RejectedPaths[:limit] {
			quoted = append(quoted, fmt.Sprintf("%q", p))
		}
		fmt.Fprintf(&sb, " Rejected destinations include %s.", strings.Join(quoted, ", "))
	}
	if fb.Comments != "" {
		fmt.Fprintf(&sb, " Their feedback: %s", fb.Comments)
	}
	sb.WriteString(" Propose a revised categorization.")
	return sb.String()
}
