package executor

import (
	"context"
	"fmt"
	"strings"
)

// deniedKeywords are statement forms the engine never runs. Matching is a
// case-insensitive substring check over the whole query, deliberately
// coarse: a keyword embedded in an identifier also rejects. False positives
// are acceptable at this boundary, false negatives are not.
var deniedKeywords = []string{"drop", "delete", "truncate", "insert", "update", "alter"}

// validateQuery gates a query before execution. Checks run in order and the
// first failure wins: denylist, known-table reference, then a backend
// dry run that compiles the query without touching data.
func (e *Executor) validateQuery(ctx context.Context, query string) error {
	lowered := strings.ToLower(query)
	for _, kw := range deniedKeywords {
		if strings.Contains(lowered, kw) {
			return fmt.Errorf("dangerous keyword %q", kw)
		}
	}

	if !strings.Contains(lowered, strings.ToLower(e.table)) {
		return fmt.Errorf("query must reference table %q", e.table)
	}

	if err := e.backend.Explain(ctx, query); err != nil {
		return fmt.Errorf("dry run failed: %w", err)
	}
	return nil
}
