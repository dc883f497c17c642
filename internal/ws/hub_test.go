package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
)

func startHub(t *testing.T) (*Hub, func(userID uuid.UUID) *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := uuid.MustParse(r.URL.Query().Get("user"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, userID)
		hub.Register(client)
		client.Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	dial := func(userID uuid.UUID) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID.String()
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.Eventually(t, func() bool { return hub.Online(userID) }, time.Second, 10*time.Millisecond)
		return conn
	}
	return hub, dial
}

func TestHub_PublishEscrowTransitionReachesParticipants(t *testing.T) {
	hub, dial := startHub(t)
	buyer, seller, stranger := uuid.New(), uuid.New(), uuid.New()

	buyerConn := dial(buyer)
	sellerConn := dial(seller)
	strangerConn := dial(stranger)

	tx := &models.EscrowTransaction{ID: uuid.New(), BuyerID: buyer, SellerID: seller}
	hub.PublishEscrowTransition(tx, models.StateHistoryEntry{
		Seq:       2,
		State:     models.EscrowStateHeld,
		Event:     models.EscrowEventPaymentCaptured,
		ActorRole: models.ActorGateway,
		At:        time.Now(),
	})

	for _, conn := range []*websocket.Conn{buyerConn, sellerConn} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string             `json:"type"`
			Data EscrowStateChanged `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, EventEscrowStateChanged, msg.Type)
		assert.Equal(t, tx.ID, msg.Data.TransactionID)
		assert.Equal(t, models.EscrowStateHeld, msg.Data.State)
		assert.Equal(t, 2, msg.Data.Seq)
	}

	_ = strangerConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := strangerConn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, dial := startHub(t)
	userID := uuid.New()

	conn := dial(userID)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return !hub.Online(userID) }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 64; i++ {
		require.NoError(t, hub.BroadcastToUser(uuid.New(), "ping", nil))
	}
	assert.Error(t, hub.BroadcastToUser(uuid.New(), "ping", nil))
}
