package notifications

// Control message types exchanged with websocket clients. Feed events use
// the types defined in the feed package.
const (
	TypeJoin          = "join"
	TypeLeave         = "leave"
	TypeJoined        = "joined"
	TypeLeft          = "left"
	TypeError         = "error"
	TypeEventsDropped = "events_dropped"
)

// InboundMessage is a client request on the socket.
type InboundMessage struct {
	Type        string `json:"type"`
	CommunityID uint   `json:"communityId"`
}

// AckMessage confirms a join or leave.
type AckMessage struct {
	Type        string `json:"type"`
	CommunityID uint   `json:"communityId"`
}

// ErrorFrame reports a rejected client request.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DroppedMessage tells a client how many events it missed.
type DroppedMessage struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// ErrorMessage builds an error frame.
func ErrorMessage(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: msg}
}
