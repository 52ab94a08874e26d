package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultUpstreamTimeout = 10 * time.Second

// UpstreamConfig controls how the HTTP client reaches the stats vendor.
type UpstreamConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// httpDoer lets tests substitute the transport.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamClient fetches from the stats vendor's HTTP API and maps its
// payloads to normalized records.
type UpstreamClient struct {
	baseURL    string
	apiKey     string
	httpClient httpDoer
}

// NewUpstreamClient constructs a client with the provided configuration.
func NewUpstreamClient(cfg UpstreamConfig) *UpstreamClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultUpstreamTimeout}
	}
	return &UpstreamClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}
}

// Vendor payload shapes. These stay private; everything outside this file
// sees normalized types only.

type rosterResponse struct {
	Data []struct {
		ID        json.Number `json:"id"`
		FirstName string      `json:"first_name"`
		LastName  string      `json:"last_name"`
		Position  string      `json:"position"`
		Team      struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"team"`
	} `json:"data"`
}

type statsResponse struct {
	Data []struct {
		ID     json.Number `json:"id"`
		Min    string      `json:"min"`
		Pts    int         `json:"pts"`
		Reb    int         `json:"reb"`
		Ast    int         `json:"ast"`
		Stl    int         `json:"stl"`
		TO     int         `json:"turnover"`
		Player struct {
			ID json.Number `json:"id"`
		} `json:"player"`
		Game struct {
			ID   json.Number `json:"id"`
			Date string      `json:"date"`
		} `json:"game"`
	} `json:"data"`
}

// FetchRosterBasic retrieves the player roster.
func (c *UpstreamClient) FetchRosterBasic(ctx context.Context) ([]Player, error) {
	var payload rosterResponse
	if err := c.get(ctx, "/players", nil, &payload); err != nil {
		return nil, err
	}

	players := make([]Player, 0, len(payload.Data))
	for _, p := range payload.Data {
		players = append(players, Player{
			ID:       p.ID.String(),
			Name:     strings.TrimSpace(p.FirstName + " " + p.LastName),
			Team:     p.Team.Abbreviation,
			Position: p.Position,
		})
	}
	return players, nil
}

// FetchGameStatsByDate retrieves every stat line for the given day.
func (c *UpstreamClient) FetchGameStatsByDate(ctx context.Context, date string) ([]StatRecord, error) {
	var payload statsResponse
	if err := c.get(ctx, "/stats", map[string]string{"dates[]": date}, &payload); err != nil {
		return nil, err
	}

	records := make([]StatRecord, 0, len(payload.Data))
	for _, s := range payload.Data {
		day, err := time.Parse(DayFormat, s.Game.Date)
		if err != nil {
			// Some vendor rows carry a full timestamp instead.
			if parsed, tsErr := time.Parse(time.RFC3339, s.Game.Date); tsErr == nil {
				day = parsed.UTC().Truncate(24 * time.Hour)
			}
		}
		records = append(records, StatRecord{
			PlayerID:  s.Player.ID.String(),
			GameID:    s.Game.ID.String(),
			Date:      day,
			Points:    s.Pts,
			Rebounds:  s.Reb,
			Assists:   s.Ast,
			Steals:    s.Stl,
			Turnovers: s.TO,
			Minutes:   parseMinutes(s.Min),
		})
	}
	return records, nil
}

func (c *UpstreamClient) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: unexpected status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// parseMinutes handles the vendor's "MM" and "MM:SS" minute formats.
func parseMinutes(raw string) int {
	if raw == "" {
		return 0
	}
	if idx := strings.Index(raw, ":"); idx >= 0 {
		raw = raw[:idx]
	}
	var minutes int
	if _, err := fmt.Sscanf(raw, "%d", &minutes); err != nil {
		return 0
	}
	return minutes
}
