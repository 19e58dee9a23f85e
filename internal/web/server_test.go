package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/lampd/internal/logic"
	"github.com/sweeney/lampd/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:       1000,
		DebounceMs:   200,
		HeartbeatMs:  3600000,
		CooldownMs:   60000,
		Broker:       "tcp://io.adafruit.com:1883",
		HTTPAddr:     ":80",
		Hostname:     "BedroomLamp",
		CommandTopic: "alice/feeds/bedroom",
		StateTopic:   "alice/feeds/bedroom",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(logic.View{
		Lamp:   true,
		Record: logic.PublishRecord{State: false, Valid: true},
		Counts: logic.Counts{Toggles: 5, CommandsOff: 2},
	}, true, 0)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Lamp != "ON" {
		t.Errorf("Lamp: got %q, want ON", sj.Status.Lamp)
	}
	if sj.Status.Published != "OFF" {
		t.Errorf("Published: got %q, want OFF", sj.Status.Published)
	}
	if sj.Status.InSync {
		t.Error("expected InSync=false")
	}
	if !sj.Status.Pending {
		t.Error("expected Pending=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Toggles != 5 {
		t.Errorf("Counts.Toggles: got %d, want 5", sj.Status.Counts.Toggles)
	}
	if sj.Status.Counts.CommandsOff != 2 {
		t.Errorf("Counts.CommandsOff: got %d, want 2", sj.Status.Counts.CommandsOff)
	}
	if sj.Status.Config.Hostname != "BedroomLamp" {
		t.Errorf("Config.Hostname: got %q", sj.Status.Config.Hostname)
	}
}

func TestJSONUnknownStateBeforeFirstCycle(t *testing.T) {
	ts, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Lamp != "UNKNOWN" {
		t.Errorf("Lamp before first cycle: got %q, want UNKNOWN", sj.Status.Lamp)
	}
	if sj.Status.Published != "UNKNOWN" {
		t.Errorf("Published before first publish: got %q, want UNKNOWN", sj.Status.Published)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(logic.View{Lamp: true, Record: logic.PublishRecord{State: true, Valid: true}}, false, 0)
	tr.RecordCommand(logic.SetOn, "alice/feeds/bedroom", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, `<td id="lamp-state" class="on">ON</td>`) {
		t.Error("expected lamp ON in page")
	}
	if !strings.Contains(page, "SET_ON on alice/feeds/bedroom") {
		t.Error("expected last command in page")
	}
	if !strings.Contains(page, "<title>BedroomLamp</title>") {
		t.Error("expected hostname in title")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts, tr := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status before first cycle: got %d, want 503", resp.StatusCode)
	}

	tr.Update(logic.View{}, false, 0)

	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status after first cycle: got %d, want 200", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	tr.Update(logic.View{Lamp: false, Record: logic.PublishRecord{Valid: true}}, false, 0)
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj2.Status.Lamp != "OFF" {
		t.Errorf("Lamp: got %q, want OFF", sj2.Status.Lamp)
	}
	if !sj2.Status.InSync {
		t.Error("expected InSync=true")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestNoStoreHeader(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control: got %q, want no-store", cc)
	}
}
