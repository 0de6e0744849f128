package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cora-trainer-go/internal/repository"
	"cora-trainer-go/internal/service"
	"cora-trainer-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// 客户端与服务端之间的帧类型。
const (
	frameSendMessage     = "send_message"
	frameConnected       = "connected"
	frameMessageResponse = "message_response"
	frameError           = "error"
)

// clientFrame 是客户端发送的消息帧。
type clientFrame struct {
	Type             string `json:"type"`
	ConversationID   string `json:"conversation_id"`
	Message          string `json:"message"`
	IsScenarioPrompt bool   `json:"is_scenario_prompt"`
}

// serverFrame 是服务端推送的消息帧。Message 在 message_response 中为 ChatMessage，其余为文本。
type serverFrame struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Message        interface{} `json:"message,omitempty"`
}

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Handle 处理一个传入的 WebSocket 连接。同一连接上的消息按顺序处理，回复依次写出。
func (h *ChatHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("[ChatHandler] WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("[ChatHandler] WebSocket 连接已建立 remote=%s", conn.RemoteAddr())
	if err := writeFrame(conn, serverFrame{Type: frameConnected, Message: "Connected to Cora"}); err != nil {
		return
	}

	ctx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("[ChatHandler] 从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			if writeFrame(conn, serverFrame{Type: frameError, Message: "Invalid message format"}) != nil {
				return
			}
			continue
		}
		if frame.Type != frameSendMessage {
			if writeFrame(conn, serverFrame{Type: frameError, Message: "Unknown message type"}) != nil {
				return
			}
			continue
		}

		if writeFrame(conn, h.reply(ctx, frame)) != nil {
			return
		}
	}
}

// reply 处理一条 send_message 帧，返回需要回写给客户端的帧。
func (h *ChatHandler) reply(ctx context.Context, frame clientFrame) serverFrame {
	msg, err := h.chatService.SendMessage(ctx, frame.ConversationID, frame.Message, frame.IsScenarioPrompt)
	if err == nil {
		return serverFrame{Type: frameMessageResponse, ConversationID: frame.ConversationID, Message: msg}
	}
	switch {
	case errors.Is(err, service.ErrInvalidMessage):
		return serverFrame{Type: frameError, Message: "Missing conversation_id or message"}
	case errors.Is(err, repository.ErrConversationNotFound):
		return serverFrame{Type: frameError, Message: "Conversation not found"}
	default:
		log.Errorf("[ChatHandler] 生成回复失败 conversation=%s: %v", frame.ConversationID, err)
		return serverFrame{Type: frameError, Message: service.ApologyMessage}
	}
}

func writeFrame(conn *websocket.Conn, frame serverFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		log.Warnf("[ChatHandler] 写入 WebSocket 失败: %v", err)
		return err
	}
	return nil
}
