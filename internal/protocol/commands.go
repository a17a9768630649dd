package protocol

// Command is a client-to-server instruction. The set of implementations is
// closed: only types in this package satisfy it.
type Command interface {
	// Action returns the wire discriminant.
	Action() string
	isCommand()
}

// Client command discriminants.
const (
	ActionCloseTable           = "close_table"
	ActionDisableTable         = "disable_table"
	ActionEnableTable          = "enable_table"
	ActionRestoreTable         = "restore_table"
	ActionMoveTable            = "move_table"
	ActionResolveWaiterRequest = "resolve_waiter_request"
	ActionRetryPOSPush         = "retry_pos_push"
)

// CloseTable ends the seated session and frees the table.
type CloseTable struct {
	TableID int `json:"table_id"`
}

// DisableTable takes a table out of service.
type DisableTable struct {
	TableID int `json:"table_id"`
}

// EnableTable returns a disabled table to service.
type EnableTable struct {
	TableID int `json:"table_id"`
}

// RestoreTable marks a dirty table as cleaned.
type RestoreTable struct {
	TableID int `json:"table_id"`
}

// MoveTable moves the seated session from one table to another.
type MoveTable struct {
	FromTableID int `json:"from_table_id"`
	ToTableID   int `json:"to_table_id"`
}

// ResolveWaiterRequest marks a waiter request as handled.
type ResolveWaiterRequest struct {
	RequestID string `json:"request_id"`
}

// RetryPOSPush asks the backend to push an order to the POS again.
type RetryPOSPush struct {
	OrderID int `json:"order_id"`
}

func (CloseTable) Action() string           { return ActionCloseTable }
func (DisableTable) Action() string         { return ActionDisableTable }
func (EnableTable) Action() string          { return ActionEnableTable }
func (RestoreTable) Action() string         { return ActionRestoreTable }
func (MoveTable) Action() string            { return ActionMoveTable }
func (ResolveWaiterRequest) Action() string { return ActionResolveWaiterRequest }
func (RetryPOSPush) Action() string         { return ActionRetryPOSPush }

func (CloseTable) isCommand()           {}
func (DisableTable) isCommand()         {}
func (EnableTable) isCommand()          {}
func (RestoreTable) isCommand()         {}
func (MoveTable) isCommand()            {}
func (ResolveWaiterRequest) isCommand() {}
func (RetryPOSPush) isCommand()         {}
