package ws

import "time"

// ConnInfo identifies one live websocket connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Username    string
	IP          string
	ConnectedAt time.Time
}
