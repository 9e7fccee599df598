package prompts

import (
	"context"
	_ "embed"
	"strings"

	"github.com/datatalk-core/server/internal/agent/model"
)

//go:embed template/plan_prompt.txt
var planSystemPrompt string

// RenderPlan renders the planning prompt for a classified query.
func RenderPlan(ctx context.Context, schemaDesc, table, query string, analysis *model.IntentAnalysis) (string, error) {
	entities := "none"
	if len(analysis.Entities) > 0 {
		entities = strings.Join(analysis.Entities, ", ")
	}

	content := strings.NewReplacer(
		"{schema}", schemaDesc,
		"{table}", table,
		"{query}", query,
		"{intent}", analysis.Intent.String(),
		"{entities}", entities,
	).Replace(planSystemPrompt)

	return renderPassthrough(ctx, content)
}
