// Package parsers turns raw model output into the typed structures the
// pipeline runs on. Parsing never fails the pipeline: malformed output
// degrades to the defined fallback value.
package parsers

import (
	"encoding/json"
	"strings"

	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// maxContentLen bounds model output accepted by the parsers.
const maxContentLen = 128 * 1024

// decodeJSON is swapped out in tests to exercise the recover paths.
var decodeJSON = json.Unmarshal

type intentEnvelope struct {
	Intent          string   `json:"intent"`
	Entities        []string `json:"entities"`
	Ambiguities     []string `json:"ambiguities"`
	RequiresContext bool     `json:"requires_context"`
}

// ParseIntentResponse parses the intent model's JSON output. Output that is
// not valid JSON yields the unclear fallback rather than an error.
func ParseIntentResponse(content string) (analysis *model.IntentAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "intent_parser").Msgf("panic recovered: %v", r)
			analysis = model.FallbackIntentAnalysis()
		}
	}()

	content = stripCodeFence(content)
	if content == "" || len(content) > maxContentLen {
		logx.Warn().Str("component", "intent_parser").Int("len", len(content)).Msg("unusable intent output")
		return model.FallbackIntentAnalysis()
	}

	var env intentEnvelope
	if err := decodeJSON([]byte(content), &env); err != nil {
		logx.Warn().Str("component", "intent_parser").Err(err).Msg("intent output is not valid JSON")
		return model.FallbackIntentAnalysis()
	}

	analysis = &model.IntentAnalysis{
		Intent:          model.ParseQueryIntent(env.Intent),
		Entities:        env.Entities,
		Ambiguities:     env.Ambiguities,
		RequiresContext: env.RequiresContext,
	}
	if analysis.Entities == nil {
		analysis.Entities = []string{}
	}
	if analysis.Ambiguities == nil {
		analysis.Ambiguities = []string{}
	}
	return analysis
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, and trims whitespace.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
