package nodes

// Graph node names.
const (
	NodeIntentContext        = "IntentContext"
	NodeIntentChatModel      = "IntentChatModel"
	NodeIntentParser         = "IntentParser"
	NodeClarificationPlanner = "ClarificationPlanner"
	NodePlanContext          = "PlanContext"
	NodePlannerChatModel     = "PlannerChatModel"
	NodePlanParser           = "PlanParser"
	NodeExecutor             = "Executor"
	NodeDirectAnswer         = "DirectAnswer"
	NodeSynthesisContext     = "SynthesisContext"
	NodeSynthesisChatModel   = "SynthesisChatModel"
	NodeAnswerBuilder        = "AnswerBuilder"
)
