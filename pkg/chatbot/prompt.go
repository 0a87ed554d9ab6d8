package chatbot

import "fmt"

// NotFoundAnswer is both the refusal sentence the model is told to use and
// the answer given when retrieval finds nothing.
const NotFoundAnswer = "I couldn't find that information on our website."

const promptTemplate = `
You are the official AI assistant for %s.

STRICT RULES:
- Answer ONLY using the website context below.
- Do NOT guess.
- Do NOT use outside knowledge.
- If answer not found, say:
  "%s"

WEBSITE CONTEXT:
%s

QUESTION:
%s

ANSWER:
`

// BuildPrompt embeds the company, the grounding rules, the context and the question.
func BuildPrompt(company, context, question string) string {
	return fmt.Sprintf(promptTemplate, company, NotFoundAnswer, context, question)
}
