package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/przemyslawpluta/extractd/internal/engine"
	"github.com/przemyslawpluta/extractd/internal/engine/enginetest"
	"github.com/przemyslawpluta/extractd/pkg/extractd"
)

// newTestServer는 가짜 exiftool 워커를 쓰는 서버를 만듭니다.
func newTestServer(t *testing.T, records map[string]engine.Tags) (*Server, *enginetest.Starter) {
	t.Helper()

	starter := &enginetest.Starter{
		Template: func() *enginetest.Worker {
			w := enginetest.NewWorker()
			for path, tags := range records {
				w.Records[path] = tags
			}
			return w
		},
	}

	cfg := extractd.DefaultConfig()
	cfg.Destination = t.TempDir()
	cfg.LogFile = ""

	client, err := extractd.NewWithFactory(cfg, starter.Start)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.SetConsole(io.Discard)
	t.Cleanup(func() { client.Close() })

	return NewServer(client), starter
}

// writeRaw는 RAW 대용 파일을 만듭니다.
func writeRaw(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("raw"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// decodeAPIErrorResponse는 API 에러 응답을 디코드합니다.
func decodeAPIErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()

	var response APIErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode APIErrorResponse: %v", err)
	}
	return response
}

// decodeValidationErrorResponse는 검증 에러 응답을 디코드합니다.
func decodeValidationErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) ValidationError {
	t.Helper()

	var response ValidationError
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode ValidationError: %v", err)
	}
	return response
}

// TestHandleExtract_ReturnsBadRequestOnInvalidJSON는 요청 바디 파싱 실패가 400인지 검증합니다.
func TestHandleExtract_ReturnsBadRequestOnInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rr := serve(s, http.MethodPost, "/api/extract", "{")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected application/json, got %s", rr.Header().Get("Content-Type"))
	}
	if decodeAPIErrorResponse(t, rr).Message == "" {
		t.Fatal("expected error message")
	}
}

// TestHandleExtract_RejectsStreamAndEmptySources는 stream 요청과 빈 입력이 검증 에러인지 확인합니다.
func TestHandleExtract_RejectsStreamAndEmptySources(t *testing.T) {
	s, starter := newTestServer(t, nil)

	rr := serve(s, http.MethodPost, "/api/extract", `{"sources":["/raw/a.nef"],"options":{"stream":true}}`)
	if rr.Code != http.StatusBadRequest || decodeValidationErrorResponse(t, rr).Field != "stream" {
		t.Fatalf("expected stream validation error, got %d", rr.Code)
	}

	rr = serve(s, http.MethodPost, "/api/extract", `{"sources":[]}`)
	if rr.Code != http.StatusBadRequest || decodeValidationErrorResponse(t, rr).Field != "sources" {
		t.Fatalf("expected sources validation error, got %d", rr.Code)
	}

	if starter.Count() != 0 {
		t.Fatal("rejected requests must not start exiftool")
	}
}

// TestHandleExtract_ReturnsUnwrappedResult는 단일 항목이 배열 없이 내려오는지 검증합니다.
func TestHandleExtract_ReturnsUnwrappedResult(t *testing.T) {
	src := writeRaw(t, t.TempDir(), "a.NEF")
	s, _ := newTestServer(t, map[string]engine.Tags{
		src: {"PreviewImage": "(Binary data)", "Orientation": float64(1)},
	})

	body, _ := json.Marshal(map[string]interface{}{
		"sources": []string{src},
		"options": map[string]bool{"base64": true, "compact": true},
	})
	rr := serve(s, http.MethodPost, "/api/extract", string(body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var preview string
	if err := json.NewDecoder(rr.Body).Decode(&preview); err != nil {
		t.Fatalf("expected bare preview string: %v", err)
	}
	if !strings.HasPrefix(preview, "/9j/") {
		t.Fatalf("unexpected preview: %s", preview)
	}
}

// TestHandleExtract_ExpandsDirectories는 디렉터리 입력이 RAW 파일별 결과로 펼쳐지는지 검증합니다.
func TestHandleExtract_ExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	a := writeRaw(t, dir, "a.nef")
	b := writeRaw(t, dir, "b.nef")
	writeRaw(t, dir, "readme.txt")

	s, _ := newTestServer(t, map[string]engine.Tags{
		a: {"JpgFromRaw": "(Binary data)"},
	})

	body, _ := json.Marshal(ExtractRequest{Sources: []string{dir}})
	rr := serve(s, http.MethodPost, "/api/extract", string(body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var items []map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("expected a list: %v", err)
	}
	if len(items) != 2 || items[0]["source"] != a || items[1]["source"] != b {
		t.Fatalf("unexpected items: %v", items)
	}
	if items[0]["preview"] == "" || items[1]["error"] != "Unknown file type" {
		t.Fatalf("unexpected outcomes: %v", items)
	}
}

// TestHandleStatusAndDesist는 persist 요청 후 status/desist API를 검증합니다.
func TestHandleStatusAndDesist(t *testing.T) {
	src := writeRaw(t, t.TempDir(), "a.NEF")
	s, starter := newTestServer(t, map[string]engine.Tags{
		src: {"PreviewImage": "(Binary data)"},
	})

	body, _ := json.Marshal(map[string]interface{}{
		"sources": []string{src},
		"options": map[string]bool{"persist": true},
	})
	if rr := serve(s, http.MethodPost, "/api/extract", string(body)); rr.Code != http.StatusOK {
		t.Fatalf("extract failed: %d", rr.Code)
	}

	rr := serve(s, http.MethodGet, "/api/status", "")
	if strings.TrimSpace(rr.Body.String()) != `{"persistent":true}` {
		t.Fatalf("unexpected status: %s", rr.Body.String())
	}

	rr = serve(s, http.MethodPost, "/api/desist", "")
	if strings.TrimSpace(rr.Body.String()) != `{"persistent":false}` {
		t.Fatalf("unexpected desist: %s", rr.Body.String())
	}
	if starter.Started[0].Ended != 1 {
		t.Fatal("desist must end the worker")
	}

	// 두 번째 desist는 no-op이다.
	rr = serve(s, http.MethodPost, "/api/desist", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"persistent":false}` {
		t.Fatalf("unexpected second desist: %d %s", rr.Code, rr.Body.String())
	}
}
