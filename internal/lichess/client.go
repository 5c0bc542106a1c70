// internal/lichess/client.go

package lichess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseURL = "https://lichess.org"
	ndjson         = "application/x-ndjson"
)

// Client reads a user's game history from the Lichess API.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    retryClient,
		logger:  logger,
	}
}

// GamesSince returns the user's games created at or after since, newest
// first, as the export endpoint orders them.
func (c *Client) GamesSince(ctx context.Context, username string, since time.Time) ([]Game, error) {
	if username == "" {
		return nil, fmt.Errorf("lichess: username is required")
	}

	query := url.Values{}
	query.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	query.Set("moves", "true")
	query.Set("pgnInJson", "false")
	path := "/api/games/user/" + url.PathEscape(username) + "?" + query.Encode()

	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch games: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var games []Game
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var g Game
		if err := json.Unmarshal(line, &g); err != nil {
			return nil, fmt.Errorf("decode game: %w", err)
		}
		games = append(games, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read games: %w", err)
	}

	c.logger.Debug("fetched games", "username", username, "count", len(games))
	return games, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", ndjson)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}
