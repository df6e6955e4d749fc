package relay

// Message is one inbound chat event from the relay.
type Message struct {
	Room       string `json:"room"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

// ReplyRequest is the outbound frame for both HTTP and WebSocket egress.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// RelayConfig mirrors the relay's /config response.
type RelayConfig struct {
	Port        int    `json:"port"`
	MessageRate int    `json:"message_rate"`
	Endpoint    string `json:"endpoint"`
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

// HeaderProvider injects per-request headers (auth tokens and the like).
type HeaderProvider func() map[string]string

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)
