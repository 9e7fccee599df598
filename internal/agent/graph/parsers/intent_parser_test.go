package parsers

import (
	"testing"

	"github.com/datatalk-core/server/internal/agent/model"
)

func TestParseIntentResponse(t *testing.T) {
	content := `{"intent": "ranking", "entities": ["market_cap"], "ambiguities": [], "requires_context": false}`

	got := ParseIntentResponse(content)

	if got.Intent != model.IntentRanking {
		t.Errorf("intent = %v, want ranking", got.Intent)
	}
	if len(got.Entities) != 1 || got.Entities[0] != "market_cap" {
		t.Errorf("entities = %v", got.Entities)
	}
	if got.NeedsClarification() {
		t.Error("clean ranking intent should not need clarification")
	}
}

func TestParseIntentResponseCodeFence(t *testing.T) {
	content := "```json\n{\"intent\": \"lookup\", \"entities\": [], \"ambiguities\": [], \"requires_context\": true}\n```"

	got := ParseIntentResponse(content)

	if got.Intent != model.IntentLookup {
		t.Errorf("intent = %v, want lookup", got.Intent)
	}
	if !got.RequiresContext {
		t.Error("requires_context lost")
	}
}

func TestParseIntentResponseFallback(t *testing.T) {
	for _, content := range []string{"", "not json at all", "{\"intent\": }"} {
		got := ParseIntentResponse(content)
		if got.Intent != model.IntentUnclear {
			t.Errorf("ParseIntentResponse(%q).Intent = %v, want unclear", content, got.Intent)
		}
		if len(got.Ambiguities) == 0 {
			t.Errorf("fallback must carry an ambiguity: %v", got)
		}
	}
}

func TestParseIntentResponseUnknownIntent(t *testing.T) {
	got := ParseIntentResponse(`{"intent": "telepathy", "entities": [], "ambiguities": []}`)
	if got.Intent != model.IntentUnclear {
		t.Errorf("unknown intent value should map to unclear, got %v", got.Intent)
	}
}

func TestParseIntentResponseRecoversToFallback(t *testing.T) {
	orig := decodeJSON
	decodeJSON = func([]byte, any) error { panic("decoder blew up") }
	defer func() { decodeJSON = orig }()

	got := ParseIntentResponse(`{"intent": "lookup"}`)
	if got == nil {
		t.Fatal("recovered parse must not return nil")
	}
	if got.Intent != model.IntentUnclear || len(got.Ambiguities) == 0 {
		t.Fatalf("recovered parse must yield the unclear fallback: %+v", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"  [1]  ", "[1]"},
		{"[1]", "[1]"},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
