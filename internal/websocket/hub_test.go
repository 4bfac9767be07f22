// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, func()) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))

	stop := func() {
		server.Close()
		cancel()
		<-done
	}
	return hub, server, stop
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d, have %d", want, hub.ClientCount())
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	first := dial(t, server)
	defer first.Close()
	second := dial(t, server)
	defer second.Close()
	waitForClients(t, hub, 2)

	alert := &alerts.AdminAlert{ID: "alert-1", Type: alerts.TypeLargeTransaction}
	hub.BroadcastJSON(MessageTypeAlert, alert)

	for _, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("client did not receive broadcast: %v", err)
		}
		if msg.Type != MessageTypeAlert {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeAlert)
		}
		data, _ := json.Marshal(msg.Data)
		if !strings.Contains(string(data), "alert-1") {
			t.Errorf("payload missing alert: %s", data)
		}
	}
}

func TestHubAnswersPing(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn := dial(t, server)
	defer conn.Close()
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("no pong received: %v", err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("message type = %q, want %q", msg.Type, MessageTypePong)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()
	waitForClients(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Serve should return the context error on shutdown")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestClientSendAfterCloseIsDropped(t *testing.T) {
	c := &Client{send: make(chan Message, 1)}

	if !c.trySend(Message{Type: MessageTypePong}) {
		t.Fatal("send to an open client must be queued")
	}
	if c.trySend(Message{Type: MessageTypePong}) {
		t.Fatal("send to a full buffer must be dropped")
	}

	c.close()
	c.close()
	if c.trySend(Message{Type: MessageTypePong}) {
		t.Fatal("send to a closed client must be dropped")
	}
}

func TestNotifierSendBroadcasts(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn := dial(t, server)
	defer conn.Close()
	waitForClients(t, hub, 1)

	n := NewNotifier(hub)
	if n.Name() != "websocket" || !n.Enabled() {
		t.Error("notifier must be always-on and named websocket")
	}
	if err := n.Send(context.Background(), &alerts.AdminAlert{ID: "alert-2"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("broadcast not delivered: %v", err)
	}
	if msg.Type != MessageTypeAlert {
		t.Errorf("message type = %q", msg.Type)
	}
}
