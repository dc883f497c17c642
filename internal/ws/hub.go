package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
)

// EventEscrowStateChanged имя события о зафиксированном переходе сделки.
const EventEscrowStateChanged = "escrow.state_changed"

// Hub управляет WebSocket клиентами и рассылает им события по userID.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

// EscrowStateChanged полезная нагрузка события перехода.
type EscrowStateChanged struct {
	TransactionID uuid.UUID              `json:"transaction_id"`
	State         models.EscrowState     `json:"state"`
	Event         models.EscrowEventType `json:"event"`
	ActorRole     models.ActorRole       `json:"actor_role"`
	Seq           int                    `json:"seq"`
	At            time.Time              `json:"at"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastToUser ставит сообщение в очередь рассылки. При переполненной
// очереди сообщение отбрасывается, вызывающий не блокируется.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{userID: userID, payload: raw}:
		return nil
	default:
		return fmt.Errorf("ws: очередь рассылки переполнена")
	}
}

// PublishEscrowTransition рассылает переход сделки покупателю и продавцу.
func (h *Hub) PublishEscrowTransition(t *models.EscrowTransaction, entry models.StateHistoryEntry) {
	payload := EscrowStateChanged{
		TransactionID: t.ID,
		State:         entry.State,
		Event:         entry.Event,
		ActorRole:     entry.ActorRole,
		Seq:           entry.Seq,
		At:            entry.At,
	}
	for _, userID := range []uuid.UUID{t.BuyerID, t.SellerID} {
		if err := h.BroadcastToUser(userID, EventEscrowStateChanged, payload); err != nil {
			logger.L().WithFields(logrus.Fields{
				"transaction_id": t.ID,
				"user_id":        userID,
			}).WithError(err).Warn("Не удалось разослать событие сделки")
		}
	}
}

// Online сообщает, есть ли у пользователя активные подключения.
func (h *Hub) Online(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Медленный клиент отключается, чтобы не задерживать рассылку остальным.
	for _, c := range slow {
		h.removeClient(c)
	}
}
