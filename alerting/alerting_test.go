package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wxstack/wxstack/config"
	"github.com/wxstack/wxstack/expression"
	"github.com/wxstack/wxstack/stanza"
)

var knownObs = map[string]bool{
	"outTemp":   true,
	"windSpeed": true,
	"barometer": true,
}

const alertingConf = `[Alerting]
    units = METRIC
    recipients = ops@example.com, night-shift@example.com
    [[HighWind]]
        expression = "windSpeed > 20"
        message = High wind speed
        alias = high_wind
    [[HardFreeze]]
        expression = "outTemp < -15"
        message = Hard freeze
        details = Check the greenhouse heater.
`

func loadSet(t *testing.T, conf string) *RuleSet {
	t.Helper()
	doc, err := stanza.ParseString(conf)
	if err != nil {
		t.Fatal(err)
	}
	set, err := LoadRules(doc, expression.New(nil), knownObs)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func TestLoadRules(t *testing.T) {
	set := loadSet(t, alertingConf)

	if len(set.Rules) != 2 {
		t.Fatalf("got %d rules", len(set.Rules))
	}
	if set.Units != "METRIC" {
		t.Errorf("units = %q", set.Units)
	}
	if len(set.Recipients) != 2 {
		t.Errorf("recipients = %v", set.Recipients)
	}
	hw := set.Rules[0]
	if hw.Name != "HighWind" || hw.Alias != "high_wind" || hw.Message != "High wind speed" {
		t.Errorf("rule = %+v", hw)
	}
	// Alias defaults to the rule name.
	if set.Rules[1].Alias != "HardFreeze" {
		t.Errorf("alias = %q", set.Rules[1].Alias)
	}
}

func TestLoadRules_DefaultVocabulary(t *testing.T) {
	doc, err := stanza.ParseString(`[Alerting]
    [[IsRaining]]
        expression = "precipType > 0"
        alias = IsRaining
        message = It is Raining
`)
	if err != nil {
		t.Fatal(err)
	}
	set, err := LoadRules(doc, expression.New(nil), DefaultObservations)
	if err != nil {
		t.Fatalf("load rejected a standard observation: %v", err)
	}
	r := set.Rules[0]
	if r.Expression != "precipType > 0" || r.Alias != "IsRaining" || r.Message != "It is Raining" {
		t.Errorf("rule = %+v", r)
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		conf string
	}{
		{"missing message", `[Alerting]
    [[HighWind]]
        expression = "windSpeed > 20"
`},
		{"missing expression", `[Alerting]
    [[HighWind]]
        message = High wind speed
`},
		{"malformed expression", `[Alerting]
    [[HighWind]]
        expression = "windSpeed > >"
        message = High wind speed
`},
		{"unknown observation", `[Alerting]
    [[HighWind]]
        expression = "warpFactor > 9"
        message = High wind speed
`},
		{"no rules", `[Alerting]
    units = METRIC
`},
	}
	engine := expression.New(nil)
	for _, tt := range tests {
		doc, err := stanza.ParseString(tt.conf)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := LoadRules(doc, engine, knownObs); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

// fakeSender records sent alerts.
type fakeSender struct {
	mu         sync.Mutex
	alerts     []Alert
	heartbeats int
}

func (f *fakeSender) Send(_ context.Context, alert Alert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return "delivery-1", nil
}

func (f *fakeSender) Heartbeat(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeSender) sent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.alerts...)
}

func TestService_EdgeTriggered(t *testing.T) {
	set := loadSet(t, alertingConf)
	sender := &fakeSender{}
	svc := NewService(set, expression.New(nil), sender)

	records := []map[string]any{
		{"windSpeed": 5.0, "outTemp": 10.0},  // calm
		{"windSpeed": 25.0, "outTemp": 10.0}, // crossing: fires
		{"windSpeed": 30.0, "outTemp": 10.0}, // still high: no repeat
		{"windSpeed": 5.0, "outTemp": 10.0},  // clears
		{"windSpeed": 22.0, "outTemp": 10.0}, // crossing again: fires
	}
	ctx := context.Background()
	for _, rec := range records {
		for _, r := range svc.rules {
			if err := svc.Process(ctx, &ruleTask{rule: r, record: rec}); err != nil {
				t.Fatalf("process: %v", err)
			}
		}
	}

	alerts := sender.sent()
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	for _, a := range alerts {
		if a.Alias != "high_wind" {
			t.Errorf("alias = %q", a.Alias)
		}
		if a.Message != "High wind speed" {
			t.Errorf("message = %q", a.Message)
		}
		if len(a.Recipients) != 2 {
			t.Errorf("recipients = %v", a.Recipients)
		}
	}
}

func TestService_FanOut(t *testing.T) {
	set := loadSet(t, alertingConf)
	sender := &fakeSender{}
	svc := NewService(set, expression.New(nil), sender)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop(ctx)

	// One record trips both rules at once.
	if err := svc.HandleRecord(map[string]any{"windSpeed": 25.0, "outTemp": -20.0}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sender.sent()) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(sender.sent()); got != 2 {
		t.Fatalf("got %d alerts, want 2", got)
	}
}

func TestService_RecordsEvaluateInOrder(t *testing.T) {
	set := loadSet(t, alertingConf)
	sender := &fakeSender{}
	svc := NewService(set, expression.New(nil), sender)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop(ctx)

	// Alternate calm and windy records. Each pair is exactly one
	// threshold crossing, but only if the rule sees its records in
	// arrival order: evaluating a pair swapped either misses the
	// crossing or fires twice.
	const pairs = 25
	for i := 0; i < pairs; i++ {
		for _, wind := range []float64{5.0, 25.0} {
			if err := svc.HandleRecord(map[string]any{"windSpeed": wind, "outTemp": 10.0}); err != nil {
				t.Fatalf("handle: %v", err)
			}
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sender.sent()) >= pairs {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Give a duplicate, if any, time to arrive.
	time.Sleep(50 * time.Millisecond)

	if got := len(sender.sent()); got != pairs {
		t.Fatalf("got %d alerts for %d crossings", got, pairs)
	}
}

func TestService_Heartbeat(t *testing.T) {
	set := loadSet(t, alertingConf)
	sender := &fakeSender{}
	svc := NewService(set, expression.New(nil), sender,
		WithHeartbeat(20*time.Millisecond), WithSource("test-station"))

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sender.mu.Lock()
		n := sender.heartbeats
		sender.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	svc.Stop(context.Background())

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.heartbeats < 2 {
		t.Errorf("heartbeats = %d, want >= 2", sender.heartbeats)
	}
}

func TestNotifier(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotKey   string
		gotAlert Alert
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		if r.URL.Path == "/alerts" {
			if err := json.NewDecoder(r.Body).Decode(&gotAlert); err != nil {
				t.Errorf("decode: %v", err)
			}
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(&config.Alerting{Endpoint: srv.URL, APIKey: "secret"})

	id, err := n.Send(context.Background(), Alert{Alias: "high_wind", Message: "High wind speed"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	mu.Lock()
	if gotPath != "/alerts" || gotKey != "secret" {
		t.Errorf("path = %q, key = %q", gotPath, gotKey)
	}
	if gotAlert.ID != id || gotAlert.Alias != "high_wind" {
		t.Errorf("alert = %+v, id = %q", gotAlert, id)
	}
	mu.Unlock()

	if err := n.Heartbeat(context.Background(), "test-station"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	mu.Lock()
	if gotPath != "/heartbeat" {
		t.Errorf("path = %q", gotPath)
	}
	mu.Unlock()
}

func TestNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier(&config.Alerting{Endpoint: srv.URL})
	if _, err := n.Send(context.Background(), Alert{Alias: "x", Message: "y"}); err == nil {
		t.Fatal("expected error on 400 response")
	}
}
