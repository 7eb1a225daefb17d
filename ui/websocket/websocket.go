package websocket

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/infrastructure/valkey"
	"github.com/AzielCF/az-wrap/pkg/preloader"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type client struct{}

const (
	CodePreloaderProgress = "PRELOADER_PROGRESS"
	CodePipelineStats     = "PIPELINE_STATS"
)

type BroadcastMessage struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Token    string `json:"token,omitempty"`
	Result   any    `json:"result"`
	SenderID string `json:"sender_id,omitempty"`
}

// clientMessage is what a connected client sends. Result is decoded per code.
type clientMessage struct {
	Code   string          `json:"code"`
	Token  string          `json:"token,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Broadcast  = make(chan BroadcastMessage)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	wsChan   = "ws_broadcast"
	localID  string
)

// SetValkeyClient initializes the distributed broadcast system
func SetValkeyClient(client *valkey.Client, serverID string) {
	vkClient = client
	localID = serverID
}

func progressMessage(u preloader.Update) BroadcastMessage {
	msg := "Download progress"
	switch {
	case u.Cancelled:
		msg = "Download cancelled"
	case u.Detached:
		msg = "Preloader detached"
	}
	return BroadcastMessage{Code: CodePreloaderProgress, Message: msg, Result: u}
}

// PublishProgress fans a preloader update out to every client. It never blocks: updates
// arriving while the hub is busy are dropped, the next one supersedes them anyway.
func PublishProgress(u preloader.Update) {
	select {
	case Broadcast <- progressMessage(u):
	default:
		logrus.Tracef("[WS] Dropped progress update for %s", u.PreloaderID)
	}
}

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

func broadcastToLocal(message BroadcastMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range Clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(message BroadcastMessage) {
	if vkClient == nil {
		return
	}

	// Attach local ID as sender
	message.SenderID = localID

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	if err := vkClient.Publish(context.Background(), wsChan, data); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func startValkeySubscriber() {
	if vkClient == nil {
		return
	}

	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := vkClient.Subscribe(context.Background(), wsChan, func(payload []byte) {
			var broadcastMsg BroadcastMessage
			if err := json.Unmarshal(payload, &broadcastMsg); err == nil {
				// Ignore our own publishes
				if broadcastMsg.SenderID == localID {
					return
				}
				broadcastToLocal(broadcastMsg)
			}
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	// If Valkey is enabled, start the subscriber
	if vkClient != nil {
		startValkeySubscriber()
	}

	for {
		select {
		case conn := <-Register:
			handleRegister(conn)

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-Broadcast:
			// 1. Send to local clients immediately
			broadcastToLocal(message)

			// 2. If Valkey is active, propagate to other servers
			if vkClient != nil {
				publishToValkey(message)
			}
		}
	}
}

func handleClientMessage(ctx context.Context, service domainAttachment.IPreviewUsecase, data clientMessage) {
	var (
		stats domainAttachment.PreviewStats
		err   error
	)
	switch data.Code {
	case "FETCH_STATS":
		stats, err = service.Stats(ctx)
	case "SCROLL":
		var request domainAttachment.ScrollRequest
		if err = json.Unmarshal(data.Result, &request); err == nil {
			stats, err = service.Scroll(ctx, request)
		}
	default:
		logrus.Debugf("[WS] Unknown client code %q", data.Code)
		return
	}
	if err != nil {
		logrus.Warnf("[WS] %s failed: %v", data.Code, err)
		return
	}

	Broadcast <- BroadcastMessage{
		Code:    CodePipelineStats,
		Message: "Pipeline stats",
		Token:   data.Token,
		Result:  stats,
	}
}

func RegisterRoutes(app fiber.Router, service domainAttachment.IPreviewUsecase) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Warnf("[WS] read error: %v", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Debugf("[WS] unsupported message type: %d", messageType)
				continue
			}

			var messageData clientMessage
			if err := json.Unmarshal(message, &messageData); err != nil {
				logrus.Warnf("[WS] unmarshal error: %v", err)
				return
			}
			handleClientMessage(context.Background(), service, messageData)
		}
	}))
}
