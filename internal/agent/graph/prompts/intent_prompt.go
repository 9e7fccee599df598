package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/intent_prompt.txt
var intentSystemPrompt string

// RenderIntent renders the intent analysis prompt via the Eino prompt
// component. Known tokens are substituted up front so the JSON braces in the
// template survive formatting.
func RenderIntent(ctx context.Context, schemaDesc, datasetDesc, conversationCtx, query string) (string, error) {
	content := strings.NewReplacer(
		"{schema}", schemaDesc,
		"{dataset_description}", datasetDesc,
		"{conversation_context}", conversationCtx,
		"{query}", query,
	).Replace(intentSystemPrompt)

	return renderPassthrough(ctx, content)
}

// renderPassthrough pushes a pre-rendered prompt through the Eino prompt
// component using a messages placeholder, which emits prompt callbacks
// without re-formatting the content.
func renderPassthrough(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
