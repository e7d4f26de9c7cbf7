// Package bridge exposes a live host session to external peers over two
// loopback transports: a null-byte-framed socket (WebSocket upgrade at /ws)
// and HTTP server-sent events. Peers observe every event the host produces
// and may inject prompts or answer tool confirmations; the first answer
// wins and resolves the confirmation for all participants.
package bridge

// EventKind tags the canonical event variants sent to peers.
type EventKind string

const (
	KindThought        EventKind = "THOUGHT"
	KindTextContent    EventKind = "TEXT_CONTENT"
	KindToolCallUpdate EventKind = "TOOL_CALL_UPDATE"
	KindConsoleLog     EventKind = "CONSOLE_LOG"
	KindHook           EventKind = "HOOK"
)

// ToolCallStatus is the wire-level lifecycle status of a tool call.
type ToolCallStatus string

const (
	StatusPending   ToolCallStatus = "PENDING"
	StatusExecuting ToolCallStatus = "EXECUTING"
	StatusSucceeded ToolCallStatus = "SUCCEEDED"
	StatusFailed    ToolCallStatus = "FAILED"
	StatusCancelled ToolCallStatus = "CANCELLED"
)

// Event is the canonical record broadcast to every peer. Only the fields
// belonging to Kind are populated; TaskID is stamped by the broadcaster
// with the process-wide session identifier.
type Event struct {
	Kind   EventKind `json:"kind"`
	TaskID string    `json:"taskId"`

	// THOUGHT
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`

	// TEXT_CONTENT
	Text     string `json:"text,omitempty"`
	IsStderr bool   `json:"isStderr,omitempty"`

	// TOOL_CALL_UPDATE
	ToolCallID      string               `json:"tool_call_id,omitempty"`
	ToolName        string               `json:"tool_name,omitempty"`
	Status          ToolCallStatus       `json:"status,omitempty"`
	InputParameters map[string]any       `json:"input_parameters,omitempty"`
	LiveContent     string               `json:"live_content,omitempty"`
	Result          *ToolCallResult      `json:"result,omitempty"`
	Confirmation    *ConfirmationRequest `json:"confirmation_request,omitempty"`

	// CONSOLE_LOG
	LogType string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`

	// HOOK
	HookName string `json:"hookName,omitempty"`
	Phase    string `json:"phase,omitempty"`
	Success  *bool  `json:"success,omitempty"`
}

// ToolCallResult is filled on terminal tool statuses: Output on SUCCEEDED,
// Error on FAILED.
type ToolCallResult struct {
	Output *ResultOutput `json:"output,omitempty"`
	Error  *ResultError  `json:"error,omitempty"`
}

// ResultOutput carries the tool's display result.
type ResultOutput struct {
	Text string `json:"text"`
}

// ResultError carries the tool's failure message.
type ResultError struct {
	Message string `json:"message"`
}

// ConfirmationRequest is attached to a PENDING TOOL_CALL_UPDATE when the
// tool executor needs approval before running.
type ConfirmationRequest struct {
	Details ConfirmationDetails  `json:"details"`
	Options []ConfirmationOption `json:"options"`
}

// ConfirmationDetails holds exactly one populated variant.
type ConfirmationDetails struct {
	Execute  *ExecuteDetails  `json:"execute_details,omitempty"`
	FileEdit *FileEditDetails `json:"file_edit_details,omitempty"`
	MCP      *MCPDetails      `json:"mcp_details,omitempty"`
	Generic  *GenericDetails  `json:"generic_details,omitempty"`
}

// ExecuteDetails describes a shell command awaiting approval.
type ExecuteDetails struct {
	Command string `json:"command"`
}

// FileEditDetails describes a file modification awaiting approval.
type FileEditDetails struct {
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path"`
	OldContent    string `json:"old_content"`
	NewContent    string `json:"new_content"`
	FormattedDiff string `json:"formatted_diff"`
}

// MCPDetails describes a remote MCP tool call awaiting approval.
type MCPDetails struct {
	ServerName string `json:"server_name"`
	ToolName   string `json:"tool_name"`
}

// GenericDetails is the fallback for confirmation kinds the bridge does
// not recognize.
type GenericDetails struct {
	Description string `json:"description"`
}

// ConfirmationOption is one selectable answer to a confirmation.
type ConfirmationOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Option identifiers. proceed_once is the sole affirmative answer; every
// other option id, known or not, is interpreted as cancel.
const (
	OptionProceedOnce = "proceed_once"
	OptionCancel      = "cancel"
)

// DefaultOptions returns the fixed two-element option set every
// confirmation carries.
func DefaultOptions() []ConfirmationOption {
	return []ConfirmationOption{
		{ID: OptionProceedOnce, Name: "Allow Once"},
		{ID: OptionCancel, Name: "Cancel"},
	}
}
