package model

// ================ Config ================
type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
	Tools    struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

// NarrativeModelConfig configures the model that writes SHAP insight
// narratives. It runs outside the graph, called from a tool.
type NarrativeModelConfig struct {
	Model       string  `envconfig:"NARRATIVE_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"NARRATIVE_MAX_TOKENS" default:"3000"`
	Temperature float32 `envconfig:"NARRATIVE_TEMPERATURE" default:"0.3"`
}

type ResponsePromptConfig struct {
	Role       string `envconfig:"PROMPT_ROLE" default:"AI Model Insights Assistant"`
	Background string `envconfig:"PROMPT_BACKGROUND" default:"You support pharma commercial teams by reviewing AI/ML outputs on prescription data, patient access, and fulfillment behavior."`
	Goal       string `envconfig:"PROMPT_GOAL" default:"to convert model results into actionable insights for brand strategy, adherence programs, and market execution."`
	Language   string `envconfig:"PROMPT_LANGUAGE" default:"en"`
}
