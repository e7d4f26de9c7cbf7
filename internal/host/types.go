package host

// ConfirmationKind identifies the shape of a tool confirmation request.
type ConfirmationKind string

const (
	ConfirmExec ConfirmationKind = "exec"
	ConfirmEdit ConfirmationKind = "edit"
	ConfirmMCP  ConfirmationKind = "mcp"
)

// ConfirmationRequest is published on TopicToolConfirmationRequest when the
// tool executor needs approval before running a tool. The correlation
// identifier matches the tool call identifier on the wire.
type ConfirmationRequest struct {
	CorrelationID string
	ToolName      string
	Kind          ConfirmationKind
	Title         string

	// exec details
	Command string

	// edit details
	FileName   string
	FilePath   string
	OldContent string
	NewContent string
	Diff       string

	// mcp details
	ServerName string
	ServerTool string
}

// ConfirmationResponse is published on TopicToolConfirmationResponse once a
// confirmation has been answered by any participant.
type ConfirmationResponse struct {
	CorrelationID string
	Confirmed     bool
}

// ToolCallStatus is the tool executor's native lifecycle status.
type ToolCallStatus string

const (
	ToolAwaitingApproval ToolCallStatus = "AwaitingApproval"
	ToolExecuting        ToolCallStatus = "Executing"
	ToolSuccess          ToolCallStatus = "Success"
	ToolError            ToolCallStatus = "Error"
	ToolCancelled        ToolCallStatus = "Cancelled"
)

// ToolCallState is the executor's view of a single tool call within a
// TOOL_CALLS_UPDATE batch.
type ToolCallState struct {
	ID         string
	Name       string
	Status     ToolCallStatus
	Parameters map[string]any

	// LiveOutput carries incremental shell output while the tool runs.
	LiveOutput string

	// DisplayResult is the human-readable result on success.
	DisplayResult string

	// Error is the failure message when Status is ToolError.
	Error string
}

// ToolCallsUpdate is published on TopicToolCallsUpdate whenever the tool
// executor advances one or more tool calls.
type ToolCallsUpdate struct {
	Calls []ToolCallState
}
