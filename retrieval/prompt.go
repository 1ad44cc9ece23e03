package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

// User-facing answer texts.
const (
	NotFoundPhrase = "I could not find information on your question"
	FallbackAnswer = NotFoundPhrase + ". Your question has been recorded and an administrator will answer it soon."

	EmptyResponseAnswer = "Error: received an empty response from the LLM."

	stubPrefix = "This is a stub. The LLM was not called.\n\nFound context:\n"
)

const promptTemplate = `You are an AI assistant. Use ONLY the context below to answer the question.
Cite sources in the form [Source: <document name>, p. <page>].
If the answer is not in the context, say "%s".

[Context]
%s
[/Context]

[Question]
%s
`

// BuildPrompt renders the instruction prompt for a question and its
// assembled context.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, NotFoundPhrase, contextText, question)
}

// ConnectionErrorAnswer is returned when the model service cannot be reached.
func ConnectionErrorAnswer(err error) string {
	return fmt.Sprintf("Error: cannot connect to the LLM service (%v).", err)
}

// InternalErrorAnswer is returned for every other failure.
func InternalErrorAnswer(err error) string {
	return fmt.Sprintf("An internal error occurred while processing your request: %v", err)
}

// assembleContext renders one labelled block and one source per match.
// Matches must already be admissible and ordered nearest first.
func assembleContext(matches []storage.Match) (string, []core.QuerySource) {
	var b strings.Builder
	sources := make([]core.QuerySource, 0, len(matches))
	for _, m := range matches {
		name := m.Metadata.SourceName
		if name == "" {
			name = "Unknown"
		}
		page := "N/A"
		var pagePtr *int
		if m.Metadata.Page > 0 {
			page = strconv.Itoa(m.Metadata.Page)
			p := m.Metadata.Page
			pagePtr = &p
		}

		fmt.Fprintf(&b, "Document '%s', page %s:\n\"%s\"\n\n", name, page, m.Document)
		sources = append(sources, core.QuerySource{
			Name:      name,
			Page:      pagePtr,
			TextChunk: m.Document,
		})
	}
	return b.String(), sources
}
