package types

// ToolResultKind distinguishes a plain business-tool result from a tool call
// that was classified as an agent handoff.
type ToolResultKind string

const (
	ToolResultBusiness ToolResultKind = "business"
	ToolResultHandoff  ToolResultKind = "handoff"
)

// ToolResult is the tagged union returned by tool dispatch. The kind is
// decided once, by routing-table lookup, rather than by inspecting ad hoc
// fields at every call site.
type ToolResult struct {
	Kind ToolResultKind `json:"kind"`
	Name string         `json:"name"`
	Data map[string]any `json:"data,omitempty"`
}
