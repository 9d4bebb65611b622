package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
)

// Conn wraps a websocket connection with a write lock so broadcasts and
// direct emits from different goroutines never interleave frames.
type Conn struct {
	ws   *websocket.Conn
	info ConnInfo

	writeMu sync.Mutex
	closed  bool
}

func NewConn(ws *websocket.Conn, info ConnInfo) *Conn {
	return &Conn{ws: ws, info: info}
}

func (c *Conn) Info() ConnInfo {
	return c.info
}

func (c *Conn) UserID() int {
	return c.info.UserID
}

// Emit writes one event frame. Write failures close the connection; the read
// loop notices and runs the teardown.
func (c *Conn) Emit(event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket marshal error conn=%s event=%s: %v", c.info.ConnID, event.Type, err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("websocket write error conn=%s: %v", c.info.ConnID, err)
		c.closed = true
		c.ws.Close()
	}
}

// Ack answers a client frame that carried an ack_id.
func (c *Conn) Ack(ackID string, success bool, data map[string]any) {
	if ackID == "" {
		return
	}
	payload := map[string]any{"ack_id": ackID, "success": success}
	for k, v := range data {
		payload[k] = v
	}
	c.Emit(models.Event{Type: models.EventAck, Data: payload})
}

func (c *Conn) Close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.closed {
		c.closed = true
		c.ws.Close()
	}
}

// ReadMessage blocks on the next client frame.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}
