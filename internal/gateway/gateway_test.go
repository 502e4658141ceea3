package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/grpcservice"
	"go.klb.dev/clipstash/internal/hub"
	"go.klb.dev/clipstash/internal/manager"
	"go.klb.dev/clipstash/internal/monitor"
	"go.klb.dev/clipstash/internal/selection"
)

type nopSaver struct{}

func (nopSaver) RequestSave() {}

func newServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()
	m, err := manager.New(5)
	if err != nil {
		t.Fatal(err)
	}
	mon, err := monitor.New(monitor.Options{EnableClipboard: true, EnablePrimary: true},
		func(k clip.Kind) (selection.Backend, error) { return selection.NewMemory(k), nil })
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mon.Close)

	mux, err := New(grpcservice.New(m, mon, nopSaver{}, hub.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, m
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestListAndGet(t *testing.T) {
	srv, m := newServer(t)
	id, _, _ := m.Insert(clip.KindPrimary, []byte("hello"))

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/clips", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/clips = %d", resp.StatusCode)
	}
	clips, _ := body["clips"].([]any)
	if len(clips) != 1 {
		t.Fatalf("clips = %v", body)
	}
	if kind := clips[0].(map[string]any)["kind"]; kind != "primary" {
		t.Errorf("kind = %v", kind)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/clips/"+itoa(id), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET clip = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/clips/999", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET missing clip = %d, want 404", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/clips/abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("GET bad id = %d, want 400", resp.StatusCode)
	}
}

func TestInsertDeleteClear(t *testing.T) {
	srv, m := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/clips?kind=clipboard", "posted")
	if resp.StatusCode != http.StatusOK || body["inserted"] != true {
		t.Fatalf("POST /v1/clips = %d %v", resp.StatusCode, body)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d", m.Len())
	}

	id := uint64(body["id"].(float64))
	_, body = do(t, http.MethodDelete, srv.URL+"/v1/clips/"+itoa(id), "")
	if body["deleted"] != true {
		t.Fatalf("DELETE = %v", body)
	}

	m.Insert(clip.KindClipboard, []byte("again"))
	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/clips", "")
	if resp.StatusCode != http.StatusOK || m.Len() != 0 {
		t.Fatalf("DELETE /v1/clips = %d, len %d", resp.StatusCode, m.Len())
	}

	_, body = do(t, http.MethodGet, srv.URL+"/v1/length", "")
	if body["length"] != float64(0) {
		t.Fatalf("length = %v", body)
	}
}

func TestMarkAndMonitor(t *testing.T) {
	srv, m := newServer(t)
	id, _, _ := m.Insert(clip.KindClipboard, []byte("m"))

	resp, _ := do(t, http.MethodPost, srv.URL+"/v1/clips/"+itoa(id)+"/mark?kind=primary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark = %d", resp.StatusCode)
	}
	if c, ok := m.Current(clip.KindPrimary); !ok || c.ID != id {
		t.Fatal("mark did not update the primary slot")
	}

	_, body := do(t, http.MethodPost, srv.URL+"/v1/monitor/primary/disable", "")
	if body["enabled"] != false {
		t.Fatalf("disable = %v", body)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/clips/"+itoa(id)+"/mark?kind=primary", "")
	if resp.StatusCode != http.StatusBadRequest {
		// FailedPrecondition maps to 400.
		t.Fatalf("mark on disabled selection = %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/monitor/tertiary", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown kind = %d", resp.StatusCode)
	}
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }
