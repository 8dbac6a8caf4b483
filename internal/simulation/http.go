package simulation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/duelrank/internal/domain/model"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPArena plays against a running server. Matches are recorded
// asynchronously there, so ratings may lag the judgements slightly.
type HTTPArena struct {
	client  *http.Client
	baseURL string
}

// NewHTTPArena creates an arena for the server at baseURL. A zero timeout
// uses 30 seconds.
func NewHTTPArena(baseURL string, timeout time.Duration) *HTTPArena {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPArena{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type matchBody struct {
	ID      string  `json:"id,omitempty"`
	HomeID  int64   `json:"home_id"`
	GuestID int64   `json:"guest_id"`
	Won     float64 `json:"won"`
}

type playerBody struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Rating    float64 `json:"rating"`
	Deviation float64 `json:"deviation"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewDuel implements Arena.
func (a *HTTPArena) NewDuel(ctx context.Context) (model.Duel, error) {
	var d model.Duel
	err := a.do(ctx, http.MethodGet, "/matches", nil, &d)
	return d, err
}

// Record implements Arena. The duel returned alongside is discarded.
func (a *HTTPArena) Record(ctx context.Context, m model.Match) error {
	body, err := sonnet.Marshal(matchBody{ID: m.ID, HomeID: m.HomeID, GuestID: m.GuestID, Won: float64(m.Outcome)})
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	return a.do(ctx, http.MethodPost, "/matches", body, nil)
}

// Players implements Arena.
func (a *HTTPArena) Players(ctx context.Context) ([]model.Player, error) {
	var entries []playerBody
	if err := a.do(ctx, http.MethodGet, "/players", nil, &entries); err != nil {
		return nil, err
	}
	out := make([]model.Player, len(entries))
	for i, e := range entries {
		out[i] = model.Player{ID: e.ID, Name: e.Name, Rating: e.Rating, Deviation: e.Deviation}
	}
	return out, nil
}

func (a *HTTPArena) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorBody
		_ = sonnet.Unmarshal(data, &e)
		return fmt.Errorf("%w: %s %s: %d %s %s", ErrServer, method, path, resp.StatusCode, e.Code, e.Message)
	}
	if out == nil {
		return nil
	}
	if err := sonnet.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
