package model

import (
	"sync"

	"github.com/datatalk-core/server/internal/dataset"
)

// QueryState is the per-invocation blackboard threaded through the whole
// pipeline. Every field has a declared merge policy, enforced by the typed
// methods below; handlers never touch fields directly.
//
//	append-only: conversation history, generated queries, query results,
//	             insights, errors
//	overwrite:   intent, entities, ambiguities, plan, chart, final response,
//	             response metadata, retry count
//	additive:    computed metrics (new keys added, existing keys overwritten)
//
// Append-only fields only grow within one invocation; overwrite fields hold
// at most one logical value. A mutex guards every method so independent
// ready steps may merge concurrently without lost updates.
type QueryState struct {
	mu sync.Mutex

	conversationID string
	query          string
	history        []ConversationTurn

	intent      QueryIntent
	entities    []string
	ambiguities []string

	plan ExecutionPlan

	generatedQueries []string
	queryResults     []*dataset.QueryResult

	computedMetrics map[string]any
	insights        []string

	chart *ChartDescriptor

	finalResponse    string
	responseMetadata map[string]any

	errors     []string
	retryCount int

	totalCostUSD float64
}

// NewQueryState creates an empty blackboard for one invocation.
func NewQueryState() *QueryState {
	return &QueryState{
		computedMetrics:  make(map[string]any),
		responseMetadata: make(map[string]any),
	}
}

// Begin seeds the immutable inputs of the invocation. The query is set once
// and never rewritten.
func (s *QueryState) Begin(conversationID, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = conversationID
	if s.query == "" {
		s.query = query
	}
}

func (s *QueryState) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *QueryState) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// AppendHistory extends the conversation history (merge policy: concatenate).
func (s *QueryState) AppendHistory(turns ...ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
}

func (s *QueryState) History() []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationTurn, len(s.history))
	copy(out, s.history)
	return out
}

// SetIntent overwrites the detected intent (last write wins).
func (s *QueryState) SetIntent(i QueryIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = i
}

func (s *QueryState) Intent() QueryIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent
}

// SetEntities overwrites the extracted entities for this invocation.
func (s *QueryState) SetEntities(entities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append([]string(nil), entities...)
}

func (s *QueryState) Entities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entities...)
}

// SetAmbiguities overwrites the open ambiguities for this invocation.
func (s *QueryState) SetAmbiguities(ambiguities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambiguities = append([]string(nil), ambiguities...)
}

func (s *QueryState) Ambiguities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ambiguities...)
}

// SetPlan overwrites the execution plan (replanning replaces it wholesale).
func (s *QueryState) SetPlan(p ExecutionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plan = p
}

// Plan returns the live plan. Steps are shared pointers: the executor marks
// completion and errors on them in place during its pass.
func (s *QueryState) Plan() ExecutionPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// AppendGeneratedQuery records an executed query in the provenance trail
// (append-only, never truncated mid-run).
func (s *QueryState) AppendGeneratedQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generatedQueries = append(s.generatedQueries, q)
}

func (s *QueryState) GeneratedQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.generatedQueries...)
}

// AppendQueryResult records one successful retrieval (append-only).
func (s *QueryState) AppendQueryResult(r *dataset.QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryResults = append(s.queryResults, r)
}

func (s *QueryState) QueryResults() []*dataset.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*dataset.QueryResult(nil), s.queryResults...)
}

// LatestQueryResult returns the most recent retrieval result, nil when none.
func (s *QueryState) LatestQueryResult() *dataset.QueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queryResults) == 0 {
		return nil
	}
	return s.queryResults[len(s.queryResults)-1]
}

// MergeMetrics merges computed metrics additively: new keys are added,
// existing keys overwritten.
func (s *QueryState) MergeMetrics(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.computedMetrics[k] = v
	}
}

func (s *QueryState) Metrics() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.computedMetrics))
	for k, v := range s.computedMetrics {
		out[k] = v
	}
	return out
}

// AppendInsight records a derived textual finding (append-only).
func (s *QueryState) AppendInsight(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, v)
}

func (s *QueryState) Insights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.insights...)
}

// SetChart overwrites the chart descriptor; only the most recent chart of an
// invocation is retained.
func (s *QueryState) SetChart(c *ChartDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chart = c
}

func (s *QueryState) Chart() *ChartDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chart
}

// SetFinalResponse writes the terminal answer text (written once by the
// synthesis stage).
func (s *QueryState) SetFinalResponse(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalResponse = v
}

func (s *QueryState) FinalResponse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalResponse
}

// SetResponseMetadata writes the terminal response metadata.
func (s *QueryState) SetResponseMetadata(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseMetadata = m
}

func (s *QueryState) ResponseMetadata() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.responseMetadata))
	for k, v := range s.responseMetadata {
		out[k] = v
	}
	return out
}

// AppendError records a human-readable error (append-only; accumulates
// across all steps, never cleared mid-run).
func (s *QueryState) AppendError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

func (s *QueryState) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

// SetRetryCount overwrites the retry counter. Tracked for diagnostics only;
// nothing in the engine acts on it.
func (s *QueryState) SetRetryCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount = n
}

func (s *QueryState) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// AddCost accumulates model usage cost (USD) for this invocation.
func (s *QueryState) AddCost(usd float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCostUSD += usd
}

func (s *QueryState) TotalCostUSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCostUSD
}
