// Package live augments answers with real-time session data from the
// OpenF1 API.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// NoDataSentinel is returned by Context when no live session data is
// available. Callers treat it as "nothing to add", not as content.
const NoDataSentinel = "No live F1 session data is currently available."

// DefaultBaseURL is the public OpenF1 API.
const DefaultBaseURL = "https://api.openf1.org/v1"

// positionLimit caps how many classified drivers are rendered.
const positionLimit = 20

// liveKeywords mark questions about the current or ongoing session.
var liveKeywords = []string{
	"current session", "live", "right now", "today's race",
	"qualifying results", "practice results", "current position",
	"latest lap", "weather at", "track temperature",
	"current standings today", "position right now",
}

// IsLiveQuery reports whether a question asks about live session data.
func IsLiveQuery(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range liveKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Augmenter supplies a live-data context blob for a question.
type Augmenter interface {
	Context(ctx context.Context) string
}

// Config configures the OpenF1 client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to an OpenF1-compatible API. All lookups target the
// latest session; endpoint failures degrade to missing sections rather
// than errors.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient builds an OpenF1 client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint,
		url.Values{"session_key": {"latest"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

type session struct {
	SessionName      string `json:"session_name"`
	SessionType      string `json:"session_type"`
	CircuitShortName string `json:"circuit_short_name"`
	CountryName      string `json:"country_name"`
	Year             int    `json:"year"`
}

// sessionLine describes the latest session, or "" when unavailable.
func (c *Client) sessionLine(ctx context.Context) string {
	var sessions []session
	if err := c.get(ctx, "sessions", &sessions); err != nil || len(sessions) == 0 {
		c.logger.Debug("no session data", "error", err)
		return ""
	}
	s := sessions[0]
	return fmt.Sprintf("Latest F1 Session: %s (%s) at %s, %s (%d)",
		s.SessionName, s.SessionType, s.CircuitShortName, s.CountryName, s.Year)
}

type sessionDriver struct {
	DriverNumber int    `json:"driver_number"`
	FullName     string `json:"full_name"`
	TeamName     string `json:"team_name"`
}

func (c *Client) driversSection(ctx context.Context) string {
	var drivers []sessionDriver
	if err := c.get(ctx, "drivers", &drivers); err != nil || len(drivers) == 0 {
		return ""
	}

	lines := []string{"Drivers in Current Session:"}
	seen := make(map[int]bool)
	for _, d := range drivers {
		if d.DriverNumber == 0 || seen[d.DriverNumber] {
			continue
		}
		seen[d.DriverNumber] = true
		name := d.FullName
		if name == "" {
			name = fmt.Sprintf("Driver #%d", d.DriverNumber)
		}
		team := d.TeamName
		if team == "" {
			team = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("  #%d %s - %s", d.DriverNumber, name, team))
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

type positionEntry struct {
	DriverNumber int `json:"driver_number"`
	Position     int `json:"position"`
}

func (c *Client) positionsSection(ctx context.Context) string {
	var entries []positionEntry
	if err := c.get(ctx, "position", &entries); err != nil || len(entries) == 0 {
		return ""
	}

	// Position updates stream in chronologically; keep only the latest
	// entry per driver.
	latest := make(map[int]positionEntry)
	for _, e := range entries {
		if e.DriverNumber != 0 {
			latest[e.DriverNumber] = e
		}
	}
	if len(latest) == 0 {
		return ""
	}

	ordered := make([]positionEntry, 0, len(latest))
	for _, e := range latest {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	if len(ordered) > positionLimit {
		ordered = ordered[:positionLimit]
	}

	lines := []string{"Current Session Positions:"}
	for _, e := range ordered {
		lines = append(lines, fmt.Sprintf("  P%d: Driver #%d", e.Position, e.DriverNumber))
	}
	return strings.Join(lines, "\n")
}

type weatherEntry struct {
	AirTemperature   float64 `json:"air_temperature"`
	TrackTemperature float64 `json:"track_temperature"`
	Humidity         float64 `json:"humidity"`
	Rainfall         float64 `json:"rainfall"`
	WindSpeed        float64 `json:"wind_speed"`
}

func (c *Client) weatherSection(ctx context.Context) string {
	var entries []weatherEntry
	if err := c.get(ctx, "weather", &entries); err != nil || len(entries) == 0 {
		return ""
	}
	w := entries[len(entries)-1]

	rain := "No"
	if w.Rainfall > 0 {
		rain = "Yes"
	}
	return fmt.Sprintf("Current Track Weather:\n"+
		"  Air Temperature: %.1f°C\n"+
		"  Track Temperature: %.1f°C\n"+
		"  Humidity: %.0f%%\n"+
		"  Rainfall: %s\n"+
		"  Wind Speed: %.1f m/s",
		w.AirTemperature, w.TrackTemperature, w.Humidity, rain, w.WindSpeed)
}

// Context aggregates every available live section into one blob. When
// nothing is available it returns NoDataSentinel.
func (c *Client) Context(ctx context.Context) string {
	var parts []string
	for _, section := range []string{
		c.sessionLine(ctx),
		c.driversSection(ctx),
		c.positionsSection(ctx),
		c.weatherSection(ctx),
	} {
		if section != "" {
			parts = append(parts, section)
		}
	}
	if len(parts) == 0 {
		return NoDataSentinel
	}
	return strings.Join(parts, "\n\n")
}
