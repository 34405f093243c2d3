package policy

import (
	"encoding/json"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/types"
)

// Tool names the model may invoke.
const (
	ToolUpdatePatientInfo = "update_patient_info"
	ToolEndCall           = "end_call"
	ToolForwardCall       = "forward_call_to_human"
)

// Disposition reason codes produced by the tools.
const (
	ReasonInterested    = "interested_customer_ready"
	ReasonNotInterested = "not_interested"
	ReasonCustomerUpset = "customer_upset"
)

// toolDefinitions is the fixed tool surface offered on every request.
var toolDefinitions = []types.ToolDefinition{
	{
		Name:        ToolUpdatePatientInfo,
		Description: "Update patient information with new data. Only include fields the patient actually provided.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				FieldPatientName: map[string]any{
					"type":        "string",
					"description": "Patient's full name",
				},
				FieldMedicalConditions: map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Medical conditions the patient mentioned",
				},
				FieldLastVisitDate: map[string]any{
					"type":        "string",
					"description": "When the patient last visited their doctor",
				},
				FieldInterested: map[string]any{
					"type":        "boolean",
					"description": "Whether the patient is interested in moving forward",
				},
			},
		},
	},
	{
		Name:        ToolEndCall,
		Description: "End the conversation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the call is ending",
				},
			},
			"required": []string{"reason"},
		},
	},
	{
		Name:        ToolForwardCall,
		Description: "Forward the call to a human agent.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the call is being forwarded",
				},
			},
			"required": []string{"reason"},
		},
	},
}

// parseReason extracts the reason argument of end_call / forward_call_to_human.
// Falls back to def when the model produced no usable arguments.
func parseReason(argumentsJSON, def string) string {
	var args struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil || args.Reason == "" {
		return def
	}
	return args.Reason
}
