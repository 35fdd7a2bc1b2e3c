package model

// Tool names exposed to the response model.
const (
	ToolCreateSession         = "create_model_analyzer_session"
	ToolSHAPFeatureImportance = "shap_feature_importance"
	ToolSHAPSummaryPlot       = "shap_summary_plot"
	ToolSHAPInsightNarrative  = "shap_insight_narrative"
	ToolF1Score               = "f1_score"
	ToolConfusionMatrixPlot   = "confusion_matrix_plot"
)

type ContentType string

const (
	ContentBase64Image     ContentType = "BASE64IMAGE"
	ContentStorageArtifact ContentType = "STORAGEARTIFACT"
	ContentJSON            ContentType = "JSON"
	ContentString          ContentType = "STRING"
	ContentBinary          ContentType = "BINARY"
)

// ToolResult is the envelope a tool records for the caller. Content holds
// base64 for images, a JSON value for JSON and text for STRING.
type ToolResult struct {
	ToolName       string      `json:"tool_name"`
	SessionID      string      `json:"session_id"`
	ConversationID string      `json:"conversation_id"`
	OutputRef      string      `json:"output_ref,omitempty"`
	ContentType    ContentType `json:"content_type"`
	Content        any         `json:"content"`
}
