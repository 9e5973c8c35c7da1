package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/przemyslawpluta/extractd/internal/pipeline"
)

// TestHubRun_RegisterBroadcastUnregisterFlow는 Hub가 등록/방송/해제를 처리하는지 검증합니다.
func TestHubRun_RegisterBroadcastUnregisterFlow(t *testing.T) {
	// Hub Run 루프는 register/broadcast/unregister 이벤트를 처리해야 한다.
	h := NewHub()
	go h.Run()

	client := &Client{
		hub:  h,
		send: make(chan []byte, 1),
	}

	h.register <- client
	waitForHubClientCount(t, h, 1)

	h.broadcast <- []byte("hello")
	select {
	case msg := <-client.send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected broadcast payload: %s", string(msg))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting broadcast message")
	}

	h.unregister <- client
	waitForHubClientCount(t, h, 0)

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected client send channel to be closed")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting client channel close")
	}
}

// TestHubRun_RemovesClientWhenSendChannelIsBlocked는 막힌 클라이언트가 정리되는지 검증합니다.
func TestHubRun_RemovesClientWhenSendChannelIsBlocked(t *testing.T) {
	// client.send이 막혀 있으면 default 분기로 클라이언트를 정리해야 한다.
	h := NewHub()
	go h.Run()

	blockedClient := &Client{
		hub:  h,
		send: make(chan []byte), // unbuffered + reader 없음 => broadcast 시 block
	}

	h.register <- blockedClient
	waitForHubClientCount(t, h, 1)

	h.broadcast <- []byte("x")
	waitForHubClientCount(t, h, 0)
}

// TestHandleWebSocket_DeliversExtractProgress는 추출 진행 이벤트가 websocket으로 전달되는지 검증합니다.
func TestHandleWebSocket_DeliversExtractProgress(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.NEF")
	s, _ := newTestServer(t, nil)

	ts := httptest.NewServer(s.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	waitForHubClientCount(t, s.hub, 1)

	body, _ := json.Marshal(ExtractRequest{Sources: []string{missing}})
	resp, err := http.Post(ts.URL+"/api/extract", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("extract request failed: %v", err)
	}
	resp.Body.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}

	var updates []pipeline.ProgressUpdate
	for len(updates) < 2 {
		var u pipeline.ProgressUpdate
		if err := conn.ReadJSON(&u); err != nil {
			t.Fatalf("failed to read websocket message: %v", err)
		}
		updates = append(updates, u)
	}

	if updates[0].Type != pipeline.UpdateItem || updates[0].Error != "File not found" {
		t.Fatalf("unexpected item update: %+v", updates[0])
	}
	if updates[1].Type != pipeline.UpdateComplete || updates[1].Summary == nil || updates[1].Summary.Failed != 1 {
		t.Fatalf("unexpected complete update: %+v", updates[1])
	}
}

// waitForHubClientCount는 Hub 클라이언트 수가 expected가 될 때까지 기다립니다.
func waitForHubClientCount(t *testing.T, h *Hub, expected int) {
	t.Helper()
	waitUntil(t, 2*time.Second, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == expected
	})
}

// waitUntil는 조건이 만족될 때까지 기다립니다.
func waitUntil(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

// TestHandleWebSocket_InvalidHandshakeStatus는 websocket 헤더 없는 요청이 실패하는지 검증합니다.
func TestHandleWebSocket_InvalidHandshakeStatus(t *testing.T) {
	// websocket 헤더 없이 /api/ws 호출 시 업그레이드 실패 상태를 반환해야 한다.
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	rr := httptest.NewRecorder()
	s.handleWebSocket(rr, req)

	if rr.Code == http.StatusOK {
		t.Fatalf("expected non-200 for invalid handshake, got %d", rr.Code)
	}
}
