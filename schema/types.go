package schema

// TaskID identifies a task created on the engine.
type TaskID string

// ClientID identifies this client to the engine across calls.
type ClientID string

// TaskRequest describes a task-creation call.
type TaskRequest struct {
	Text     string
	Settings TaskSettings
}

// TaskSettings carries the per-task settings sent with the creation call.
type TaskSettings struct {
	Mode         Mode
	AutoApproval AutoApproval
}

// AutoApproval lists the actions the engine may take without asking.
type AutoApproval struct {
	Enabled     bool
	MaxRequests int
	Actions     ApprovalActions
}

// ApprovalActions enumerates the individually pre-approvable actions.
type ApprovalActions struct {
	ReadFiles           bool
	ReadFilesExternally bool
	EditFiles           bool
	EditFilesExternally bool
	ExecuteSafeCommands bool
	ExecuteAllCommands  bool
	UseBrowser          bool
	UseMCP              bool
}

// Any reports whether at least one action is pre-approved.
func (a ApprovalActions) Any() bool {
	return a.ReadFiles || a.ReadFilesExternally || a.EditFiles || a.EditFilesExternally ||
		a.ExecuteSafeCommands || a.ExecuteAllCommands || a.UseBrowser || a.UseMCP
}
