package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/rag"
)

// questionTemplate is filled with the retrieved documents and the user query.
const questionTemplate = "Given the following documents, answer the question:\n\n{context}\n\nQuestion: {input}"

// BuildSystemPrompt describes the assistant the model should speak as.
func BuildSystemPrompt(p *profile.Profile) string {
	if p == nil {
		return "You are a helpful campus information assistant."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s", p.Name)
	if p.Title != "" {
		fmt.Fprintf(&b, ", %s", p.Title)
	}
	b.WriteString(".")
	if p.PromptHint != "" {
		b.WriteString("\n")
		b.WriteString(p.PromptHint)
	}
	b.WriteString("\nIf the documents do not contain the answer, say so.")
	return b.String()
}

// formatContext stuffs retrieved documents into one block, each tagged with its source.
func formatContext(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if url := rag.SourceURL(doc); url != "" {
			parts = append(parts, fmt.Sprintf("Source: %s\n%s", url, doc.Content))
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
