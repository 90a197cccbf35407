package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultErgastBaseURL is the Jolpica API, the maintained Ergast successor.
const DefaultErgastBaseURL = "https://api.jolpi.ca/ergast/f1"

// DefaultErgastYears are the seasons fetched when none are specified.
var DefaultErgastYears = []int{2020, 2021, 2022, 2023, 2024, 2025}

// resultsPerRace caps how many finishing positions are rendered per race.
const resultsPerRace = 10

// ErgastConfig configures the structured data client.
type ErgastConfig struct {
	BaseURL string
	Timeout time.Duration
	Delay   time.Duration // pacing between API calls
	Logger  *slog.Logger
}

// Ergast fetches season results, standings, and entrant data from a
// Jolpica-compatible API and renders each dataset as a plain-text
// document suitable for chunking.
type Ergast struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewErgast builds a client.
func NewErgast(cfg ErgastConfig) *Ergast {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultErgastBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Ergast{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		logger:  cfg.Logger,
	}
}

// Response shapes for the MRData envelope. Only the consumed fields are
// declared.

type ergastDriver struct {
	GivenName       string `json:"givenName"`
	FamilyName      string `json:"familyName"`
	Nationality     string `json:"nationality"`
	DateOfBirth     string `json:"dateOfBirth"`
	PermanentNumber string `json:"permanentNumber"`
	Code            string `json:"code"`
}

func (d ergastDriver) fullName() string {
	return strings.TrimSpace(d.GivenName + " " + d.FamilyName)
}

type ergastConstructor struct {
	Name        string `json:"name"`
	Nationality string `json:"nationality"`
}

type ergastEnvelope struct {
	MRData struct {
		RaceTable struct {
			Races []struct {
				RaceName string `json:"raceName"`
				Date     string `json:"date"`
				Circuit  struct {
					CircuitName string `json:"circuitName"`
				} `json:"Circuit"`
				Results []struct {
					Position    string            `json:"position"`
					Status      string            `json:"status"`
					Driver      ergastDriver      `json:"Driver"`
					Constructor ergastConstructor `json:"Constructor"`
					Time        struct {
						Time string `json:"time"`
					} `json:"Time"`
				} `json:"Results"`
			} `json:"Races"`
		} `json:"RaceTable"`
		StandingsTable struct {
			StandingsLists []struct {
				DriverStandings []struct {
					Position     string              `json:"position"`
					Points       string              `json:"points"`
					Wins         string              `json:"wins"`
					Driver       ergastDriver        `json:"Driver"`
					Constructors []ergastConstructor `json:"Constructors"`
				} `json:"DriverStandings"`
				ConstructorStandings []struct {
					Position    string            `json:"position"`
					Points      string            `json:"points"`
					Wins        string            `json:"wins"`
					Constructor ergastConstructor `json:"Constructor"`
				} `json:"ConstructorStandings"`
			} `json:"StandingsLists"`
		} `json:"StandingsTable"`
		DriverTable struct {
			Drivers []ergastDriver `json:"Drivers"`
		} `json:"DriverTable"`
		ConstructorTable struct {
			Constructors []ergastConstructor `json:"Constructors"`
		} `json:"ConstructorTable"`
	} `json:"MRData"`
}

func (e *Ergast) get(ctx context.Context, endpoint, query string) (*ergastEnvelope, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s.json", e.baseURL, endpoint)
	if query != "" {
		url += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var envelope ergastEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return &envelope, nil
}

func (e *Ergast) document(content, title, endpoint, category string, priority int) Document {
	return Document{
		Content:       content,
		Title:         title,
		URL:           fmt.Sprintf("%s/%s", e.baseURL, endpoint),
		Category:      category,
		Priority:      priority,
		ScrapedAt:     time.Now().UTC(),
		ContentLength: len(content),
	}
}

// SeasonResults renders a season's race results, top finishers per race.
func (e *Ergast) SeasonResults(ctx context.Context, year int) (Document, error) {
	endpoint := fmt.Sprintf("%d/results", year)
	envelope, err := e.get(ctx, endpoint, "limit=500")
	if err != nil {
		return Document{}, err
	}

	races := envelope.MRData.RaceTable.Races
	if len(races) == 0 {
		return Document{}, fmt.Errorf("no race results for %d", year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Formula 1 %d Season Race Results\n", year)
	for _, race := range races {
		fmt.Fprintf(&b, "\n\n%s - %s (%s)", race.RaceName, race.Circuit.CircuitName, race.Date)
		results := race.Results
		if len(results) > resultsPerRace {
			results = results[:resultsPerRace]
		}
		for _, r := range results {
			finish := r.Time.Time
			if finish == "" {
				finish = r.Status
			}
			fmt.Fprintf(&b, "\n  P%s: %s (%s) - %s", r.Position, r.Driver.fullName(), r.Constructor.Name, finish)
		}
	}

	return e.document(b.String(), fmt.Sprintf("%d Season Race Results", year), endpoint, "race_results", 1), nil
}

// DriverStandings renders a season's drivers' championship table.
func (e *Ergast) DriverStandings(ctx context.Context, year int) (Document, error) {
	endpoint := fmt.Sprintf("%d/driverStandings", year)
	envelope, err := e.get(ctx, endpoint, "")
	if err != nil {
		return Document{}, err
	}

	lists := envelope.MRData.StandingsTable.StandingsLists
	if len(lists) == 0 || len(lists[0].DriverStandings) == 0 {
		return Document{}, fmt.Errorf("no driver standings for %d", year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Formula 1 %d Drivers' Championship Standings\n", year)
	for _, s := range lists[0].DriverStandings {
		team := ""
		if len(s.Constructors) > 0 {
			team = s.Constructors[0].Name
		}
		fmt.Fprintf(&b, "\nP%s: %s (%s) - %s - %s points, %s wins",
			s.Position, s.Driver.fullName(), s.Driver.Nationality, team, s.Points, s.Wins)
	}

	return e.document(b.String(), fmt.Sprintf("%d Drivers Championship", year), endpoint, "standings", 1), nil
}

// ConstructorStandings renders a season's constructors' championship table.
func (e *Ergast) ConstructorStandings(ctx context.Context, year int) (Document, error) {
	endpoint := fmt.Sprintf("%d/constructorStandings", year)
	envelope, err := e.get(ctx, endpoint, "")
	if err != nil {
		return Document{}, err
	}

	lists := envelope.MRData.StandingsTable.StandingsLists
	if len(lists) == 0 || len(lists[0].ConstructorStandings) == 0 {
		return Document{}, fmt.Errorf("no constructor standings for %d", year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Formula 1 %d Constructors' Championship Standings\n", year)
	for _, s := range lists[0].ConstructorStandings {
		fmt.Fprintf(&b, "\nP%s: %s (%s) - %s points, %s wins",
			s.Position, s.Constructor.Name, s.Constructor.Nationality, s.Points, s.Wins)
	}

	return e.document(b.String(), fmt.Sprintf("%d Constructors Championship", year), endpoint, "standings", 1), nil
}

// Drivers renders a season's driver roster.
func (e *Ergast) Drivers(ctx context.Context, year int) (Document, error) {
	endpoint := fmt.Sprintf("%d/drivers", year)
	envelope, err := e.get(ctx, endpoint, "")
	if err != nil {
		return Document{}, err
	}

	drivers := envelope.MRData.DriverTable.Drivers
	if len(drivers) == 0 {
		return Document{}, fmt.Errorf("no drivers for %d", year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Formula 1 %d Season Drivers\n", year)
	for _, d := range drivers {
		number := d.PermanentNumber
		if number == "" {
			number = "N/A"
		}
		fmt.Fprintf(&b, "\n%s (%s) - #%s - %s - Born: %s",
			d.fullName(), d.Code, number, d.Nationality, d.DateOfBirth)
	}

	return e.document(b.String(), fmt.Sprintf("%d Drivers Info", year), endpoint, "drivers", 2), nil
}

// Constructors renders a season's entrant list.
func (e *Ergast) Constructors(ctx context.Context, year int) (Document, error) {
	endpoint := fmt.Sprintf("%d/constructors", year)
	envelope, err := e.get(ctx, endpoint, "")
	if err != nil {
		return Document{}, err
	}

	constructors := envelope.MRData.ConstructorTable.Constructors
	if len(constructors) == 0 {
		return Document{}, fmt.Errorf("no constructors for %d", year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Formula 1 %d Season Constructors/Teams\n", year)
	for _, c := range constructors {
		fmt.Fprintf(&b, "\n%s (%s)", c.Name, c.Nationality)
	}

	return e.document(b.String(), fmt.Sprintf("%d Constructors Info", year), endpoint, "constructors", 2), nil
}

// FetchAll retrieves every dataset for the given years (defaults to
// DefaultErgastYears). Failures are collected into Stats; the returned
// documents cover whatever succeeded.
func (e *Ergast) FetchAll(ctx context.Context, years []int) ([]Document, Stats) {
	if len(years) == 0 {
		years = DefaultErgastYears
	}

	fetchers := []struct {
		name  string
		fetch func(context.Context, int) (Document, error)
	}{
		{"results", e.SeasonResults},
		{"driver_standings", e.DriverStandings},
		{"constructor_standings", e.ConstructorStandings},
		{"drivers", e.Drivers},
		{"constructors", e.Constructors},
	}

	var documents []Document
	var stats Stats
	for _, year := range years {
		for _, f := range fetchers {
			stats.Total++
			doc, err := f.fetch(ctx, year)
			if err != nil {
				stats.Failed++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s %d: %v", f.name, year, err))
				e.logger.Warn("fetch failed", "dataset", f.name, "year", year, "error", err)
				continue
			}
			documents = append(documents, doc)
			stats.Success++
			e.logger.Info("fetched dataset", "dataset", f.name, "year", year, "chars", doc.ContentLength)
		}
	}

	e.logger.Info("structured data fetch complete",
		"success", stats.Success, "failed", stats.Failed, "total", stats.Total)

	return documents, stats
}
