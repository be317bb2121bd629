package constant

// Ключи атрибутов slog
const (
	Error    = "error"
	ClientID = "client_id"
	TargetID = "target_id"
	RoomName = "room_name"
	Type     = "type"
	Reason   = "reason"
)
