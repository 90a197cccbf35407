package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitlane-dev/pitwall/internal/log"
)

func TestIsLiveQuery(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"What is happening in the current session?", true},
		{"Show me live timing", true},
		{"Who is leading right now?", true},
		{"What were the qualifying results?", true},
		{"What is the track temperature?", true},
		{"Who won the 2021 championship?", false},
		{"Compare Hamilton and Verstappen", false},
		{"", false},
		{"LIVE coverage please", true}, // case-insensitive
	}
	for _, tt := range tests {
		if got := IsLiveQuery(tt.question); got != tt.want {
			t.Errorf("IsLiveQuery(%q) = %v, want %v", tt.question, got, tt.want)
		}
	}
}

func newLiveServer(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session_key") != "latest" {
			t.Errorf("missing session_key=latest on %s", r.URL.Path)
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Logger: log.NewNop()})
}

func TestContextAggregatesSections(t *testing.T) {
	client := newLiveServer(t, map[string]string{
		"/sessions": `[{"session_name":"Race","session_type":"Race",
			"circuit_short_name":"Monza","country_name":"Italy","year":2025}]`,
		"/drivers": `[
			{"driver_number":1,"full_name":"Max Verstappen","team_name":"Red Bull"},
			{"driver_number":1,"full_name":"Max Verstappen","team_name":"Red Bull"},
			{"driver_number":4,"full_name":"Lando Norris","team_name":"McLaren"}]`,
		"/position": `[
			{"driver_number":4,"position":2},
			{"driver_number":1,"position":2},
			{"driver_number":1,"position":1},
			{"driver_number":4,"position":1},
			{"driver_number":4,"position":2}]`,
		"/weather": `[
			{"air_temperature":20.0,"track_temperature":30.0,"humidity":60,"rainfall":0,"wind_speed":1.0},
			{"air_temperature":24.5,"track_temperature":41.2,"humidity":55,"rainfall":1,"wind_speed":2.3}]`,
	})

	blob := client.Context(context.Background())

	for _, want := range []string{
		"Latest F1 Session: Race (Race) at Monza, Italy (2025)",
		"#1 Max Verstappen - Red Bull",
		"#4 Lando Norris - McLaren",
		"P1: Driver #1",
		"P2: Driver #4",
		"Track Temperature: 41.2°C",
		"Rainfall: Yes",
	} {
		if !strings.Contains(blob, want) {
			t.Errorf("context missing %q:\n%s", want, blob)
		}
	}
	if strings.Count(blob, "#1 Max Verstappen") != 1 {
		t.Error("duplicate driver entries should be collapsed")
	}
}

func TestContextUsesLatestPositionPerDriver(t *testing.T) {
	client := newLiveServer(t, map[string]string{
		"/position": `[
			{"driver_number":1,"position":5},
			{"driver_number":1,"position":1}]`,
	})

	blob := client.Context(context.Background())
	if !strings.Contains(blob, "P1: Driver #1") {
		t.Errorf("latest position not used:\n%s", blob)
	}
	if strings.Contains(blob, "P5") {
		t.Errorf("stale position leaked:\n%s", blob)
	}
}

func TestContextNoDataSentinel(t *testing.T) {
	client := newLiveServer(t, map[string]string{})
	if blob := client.Context(context.Background()); blob != NoDataSentinel {
		t.Errorf("Context() = %q, want sentinel", blob)
	}
}

func TestContextPartialSections(t *testing.T) {
	client := newLiveServer(t, map[string]string{
		"/weather": `[{"air_temperature":18.0,"track_temperature":22.0,"humidity":70,"rainfall":0,"wind_speed":4.0}]`,
	})

	blob := client.Context(context.Background())
	if blob == NoDataSentinel {
		t.Fatal("weather alone should produce a context")
	}
	if !strings.Contains(blob, "Rainfall: No") {
		t.Errorf("weather section missing:\n%s", blob)
	}
	if strings.Contains(blob, "Latest F1 Session") {
		t.Errorf("unavailable section leaked:\n%s", blob)
	}
}
