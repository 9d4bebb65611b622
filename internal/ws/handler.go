package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/auth"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/cache"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/pipeline"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/presence"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/storage"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/transfer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: handshake, presence, room membership
// and the per-connection read loop dispatching client frames.
type Handler struct {
	hub         *Hub
	verifier    *auth.Verifier
	users       repositories.UserRepository
	chats       repositories.ChatRepository
	userCache   *cache.UserCache
	presence    *presence.Registry
	pipeline    *pipeline.Pipeline
	reassembler *transfer.Reassembler
}

func NewHandler(
	hub *Hub,
	verifier *auth.Verifier,
	users repositories.UserRepository,
	chats repositories.ChatRepository,
	userCache *cache.UserCache,
	registry *presence.Registry,
	pipe *pipeline.Pipeline,
	reassembler *transfer.Reassembler,
) *Handler {
	return &Handler{
		hub:         hub,
		verifier:    verifier,
		users:       users,
		chats:       chats,
		userCache:   userCache,
		presence:    registry,
		pipeline:    pipe,
		reassembler: reassembler,
	}
}

// clientFrame is the envelope every client message arrives in.
type clientFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handle authenticates, upgrades and serves one websocket connection.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("convohub/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	userID, err := h.verifier.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := NewConn(wsConn, ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		Username:    user.Username,
		IP:          observability.IPFromRequest(c.Request),
		ConnectedAt: time.Now(),
	})

	// The handshake span ends here; the read loop outlives the request scope.
	span.End()

	h.serve(conn, user)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// serve finishes connection setup and runs the read loop until disconnect.
func (h *Handler) serve(conn *Conn, user models.User) {
	ctx := context.Background()
	info := conn.Info()

	observability.IncWSActive()
	log.Printf("ws connect conn=%s user=%d ip=%s", info.ConnID, info.UserID, info.IP)
	defer h.teardown(ctx, conn)

	first, err := h.presence.Register(ctx, info.ConnID, user)
	if err != nil {
		log.Printf("ws presence register conn=%s user=%d err=%v", info.ConnID, info.UserID, err)
	}

	chats, err := h.userCache.MemberChats(ctx, info.UserID)
	if err != nil {
		log.Printf("ws member chats user=%d err=%v", info.UserID, err)
	}
	h.hub.Join(models.UserRoom(info.UserID), conn)
	for _, chat := range chats {
		h.hub.Join(models.ChatRoom(chat.ChatID), conn)
	}

	conn.Emit(models.Event{Type: models.EventConnected, Data: map[string]any{
		"conn_id": info.ConnID,
		"user":    user.Profile(),
		"chats":   chats,
	}})

	if first {
		if err := h.users.SetOnline(ctx, info.UserID, true, time.Now().UTC()); err != nil {
			log.Printf("ws online write user=%d err=%v", info.UserID, err)
		}
		h.hub.BroadcastAll(models.Event{Type: models.EventUserOnline, Data: map[string]any{
			"user_id":  info.UserID,
			"username": user.Username,
		}})
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read conn=%s user=%d err=%v", info.ConnID, info.UserID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			conn.Emit(models.Event{Type: models.EventMessageError, Data: map[string]any{
				"error": "malformed frame",
			}})
			continue
		}
		observability.IncWSEvent(frame.Type)
		h.dispatch(ctx, conn, frame)
	}
}

// dispatch routes one client frame. Frames are handled in arrival order on
// the connection's read goroutine.
func (h *Handler) dispatch(ctx context.Context, conn *Conn, frame clientFrame) {
	switch frame.Type {
	case models.FrameSendMessage:
		var req pipeline.SendMessageRequest
		if !decode(conn, frame.Data, &req) {
			return
		}
		h.pipeline.SendMessage(ctx, conn, req)

	case models.FrameUpdateMessageStatus:
		var req pipeline.UpdateStatusRequest
		if !decode(conn, frame.Data, &req) {
			return
		}
		h.pipeline.UpdateStatus(ctx, conn, req)

	case models.FrameUpdateMessage:
		var req pipeline.EditMessageRequest
		if !decode(conn, frame.Data, &req) {
			return
		}
		h.pipeline.EditMessage(ctx, conn, req)

	case models.FrameDeleteMessageForAll:
		var req pipeline.DeleteRequest
		if !decode(conn, frame.Data, &req) {
			return
		}
		h.pipeline.DeleteForAll(ctx, conn, req)

	case models.FrameDeleteMessageForUser:
		var req pipeline.DeleteRequest
		if !decode(conn, frame.Data, &req) {
			return
		}
		h.pipeline.DeleteForUser(ctx, conn, req)

	case models.FrameTypingStart:
		h.relayTyping(conn, frame.Data, models.EventUserTyping)

	case models.FrameTypingStop:
		h.relayTyping(conn, frame.Data, models.EventUserStoppedTyping)

	case models.FrameJoinChat:
		h.joinChat(ctx, conn, frame.Data)

	case models.FrameLeaveChat:
		h.leaveChat(conn, frame.Data)

	case models.FrameUpdateStatus:
		h.updateStatus(ctx, conn, frame.Data)

	case models.FrameGetOnlineUsers:
		h.onlineUsers(ctx, conn, frame.Data)

	case models.FrameSendFileMessage:
		h.sendFile(ctx, conn, frame.Data)

	case models.FrameSendFileChunk:
		h.ingestChunk(ctx, conn, frame.Data)

	case models.FrameFileUploadProgress:
		h.relayProgress(conn, frame.Data)

	default:
		conn.Emit(models.Event{Type: models.EventMessageError, Data: map[string]any{
			"error": "unknown frame type: " + frame.Type,
		}})
	}
}

func decode(conn *Conn, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		conn.Emit(models.Event{Type: models.EventMessageError, Data: map[string]any{
			"error": "malformed frame data",
		}})
		return false
	}
	return true
}

type chatFrame struct {
	ChatID int    `json:"chat_id"`
	AckID  string `json:"ack_id,omitempty"`
}

func (h *Handler) relayTyping(conn *Conn, raw json.RawMessage, event string) {
	var req chatFrame
	if !decode(conn, raw, &req) {
		return
	}
	room := models.ChatRoom(req.ChatID)
	if !h.hub.InRoom(room, conn) {
		return
	}
	h.hub.BroadcastExcept(room, models.Event{Type: event, Data: map[string]any{
		"chat_id":  req.ChatID,
		"user_id":  conn.UserID(),
		"username": conn.Info().Username,
	}}, conn)
}

func (h *Handler) joinChat(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var req chatFrame
	if !decode(conn, raw, &req) {
		return
	}
	member, err := h.chats.IsMember(ctx, req.ChatID, conn.UserID())
	if err != nil || !member {
		conn.Emit(models.Event{Type: models.EventMessageError, Data: map[string]any{
			"error":   "not a member of this chat",
			"chat_id": req.ChatID,
		}})
		conn.Ack(req.AckID, false, map[string]any{"chat_id": req.ChatID})
		return
	}

	room := models.ChatRoom(req.ChatID)
	h.hub.Join(room, conn)
	conn.Emit(models.Event{Type: models.EventChatJoined, Data: map[string]any{"chat_id": req.ChatID}})
	h.hub.BroadcastExcept(room, models.Event{Type: models.EventUserJoinedChat, Data: map[string]any{
		"chat_id":  req.ChatID,
		"user_id":  conn.UserID(),
		"username": conn.Info().Username,
	}}, conn)
	conn.Ack(req.AckID, true, map[string]any{"chat_id": req.ChatID})
}

func (h *Handler) leaveChat(conn *Conn, raw json.RawMessage) {
	var req chatFrame
	if !decode(conn, raw, &req) {
		return
	}
	room := models.ChatRoom(req.ChatID)
	h.hub.Leave(room, conn)
	h.hub.Broadcast(room, models.Event{Type: models.EventUserLeftChat, Data: map[string]any{
		"chat_id":  req.ChatID,
		"user_id":  conn.UserID(),
		"username": conn.Info().Username,
	}})
	conn.Ack(req.AckID, true, map[string]any{"chat_id": req.ChatID})
}

func (h *Handler) updateStatus(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var req struct {
		Status string `json:"status"`
		AckID  string `json:"ack_id,omitempty"`
	}
	if !decode(conn, raw, &req) {
		return
	}

	if err := h.users.UpdateStatusMessage(ctx, conn.UserID(), req.Status); err != nil {
		log.Printf("ws status update user=%d err=%v", conn.UserID(), err)
		conn.Ack(req.AckID, false, map[string]any{"error": "failed to update status"})
		return
	}
	if err := h.presence.Refresh(ctx, conn.UserID(), req.Status); err != nil {
		log.Printf("ws presence refresh user=%d err=%v", conn.UserID(), err)
	}
	if err := h.userCache.InvalidateProfile(ctx, conn.UserID()); err != nil {
		log.Printf("ws profile invalidate user=%d err=%v", conn.UserID(), err)
	}

	h.hub.BroadcastAll(models.Event{Type: models.EventUserStatusUpdated, Data: map[string]any{
		"user_id": conn.UserID(),
		"status":  req.Status,
	}})
	conn.Ack(req.AckID, true, nil)
}

func (h *Handler) onlineUsers(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var req struct {
		AckID string `json:"ack_id,omitempty"`
	}
	if len(raw) > 0 && !decode(conn, raw, &req) {
		return
	}

	entries, err := h.presence.OnlineUsers(ctx)
	if err != nil {
		log.Printf("ws online users err=%v", err)
		conn.Ack(req.AckID, false, map[string]any{"error": "failed to list online users"})
		return
	}
	conn.Emit(models.Event{Type: models.EventOnlineUsers, Data: map[string]any{"users": entries}})
	conn.Ack(req.AckID, true, map[string]any{"count": len(entries)})
}

func (h *Handler) sendFile(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var req struct {
		ChatID   int    `json:"chat_id"`
		FileName string `json:"file_name"`
		MimeType string `json:"file_type"`
		FileData string `json:"file_data"`
		Caption  string `json:"caption,omitempty"`
		TempID   string `json:"temp_id,omitempty"`
		AckID    string `json:"ack_id,omitempty"`
	}
	if !decode(conn, raw, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		conn.Emit(models.Event{Type: models.EventFileUploadError, Data: map[string]any{
			"error":   "file_data is not valid base64",
			"temp_id": req.TempID,
		}})
		conn.Ack(req.AckID, false, map[string]any{"error": "file_data is not valid base64"})
		return
	}

	h.pipeline.SendFileMessage(ctx, conn, pipeline.FileMessageRequest{
		ChatID:   req.ChatID,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Data:     data,
		Caption:  req.Caption,
		TempID:   req.TempID,
		AckID:    req.AckID,
	})
}

func (h *Handler) ingestChunk(ctx context.Context, conn *Conn, raw json.RawMessage) {
	var chunk transfer.Chunk
	if !decode(conn, raw, &chunk) {
		return
	}
	if len(chunk.Data) > storage.MaxFileSize {
		conn.Emit(models.Event{Type: models.EventFileUploadError, Data: map[string]any{
			"error":   "chunk exceeds the size limit",
			"temp_id": chunk.TempID,
		}})
		return
	}

	progress, completed, err := h.reassembler.Ingest(ctx, conn.UserID(), chunk)
	if err != nil {
		log.Printf("ws chunk ingest conn=%s transfer=%s err=%v", conn.Info().ConnID, chunk.TempID, err)
		conn.Emit(models.Event{Type: models.EventFileUploadError, Data: map[string]any{
			"error":   err.Error(),
			"temp_id": chunk.TempID,
		}})
		conn.Ack(chunk.AckID, false, map[string]any{"error": err.Error(), "temp_id": chunk.TempID})
		return
	}

	conn.Ack(chunk.AckID, true, map[string]any{
		"temp_id":     progress.TempID,
		"chunk_index": progress.ChunkIndex,
		"received":    progress.Received,
		"total":       progress.Total,
		"complete":    progress.Complete,
	})

	if completed != nil {
		h.pipeline.SendFileMessage(ctx, conn, pipeline.FileMessageRequest{
			ChatID:   completed.Meta.ChatID,
			FileName: completed.Meta.FileName,
			MimeType: completed.Meta.MimeType,
			Data:     completed.Data,
			Caption:  completed.Meta.Caption,
			TempID:   completed.Meta.TempID,
			AckID:    completed.Meta.AckID,
		})
	}
}

func (h *Handler) relayProgress(conn *Conn, raw json.RawMessage) {
	var req struct {
		ChatID  int    `json:"chat_id"`
		TempID  string `json:"temp_id"`
		Percent int    `json:"percent"`
	}
	if !decode(conn, raw, &req) {
		return
	}
	room := models.ChatRoom(req.ChatID)
	if !h.hub.InRoom(room, conn) {
		return
	}
	h.hub.BroadcastExcept(room, models.Event{Type: models.EventFileUploadProgress, Data: map[string]any{
		"chat_id": req.ChatID,
		"temp_id": req.TempID,
		"user_id": conn.UserID(),
		"percent": req.Percent,
	}}, conn)
}

// teardown runs once the read loop exits: rooms, presence, metrics, offline
// broadcast.
func (h *Handler) teardown(ctx context.Context, conn *Conn) {
	info := conn.Info()
	h.hub.Remove(conn)
	conn.Close()
	observability.DecWSActive()

	userID, err := h.presence.Disconnect(ctx, info.ConnID)
	if err != nil {
		log.Printf("ws disconnect conn=%s err=%v", info.ConnID, err)
	}
	if userID > 0 {
		h.hub.BroadcastAll(models.Event{Type: models.EventUserOffline, Data: map[string]any{
			"user_id":   userID,
			"last_seen": time.Now().UTC().Format(time.RFC3339),
		}})
	}
	log.Printf("ws disconnect conn=%s user=%d duration_ms=%d",
		info.ConnID, info.UserID, time.Since(info.ConnectedAt).Milliseconds())
}
