// Command bruteforcer plays arcade sessions through the REST API until a
// target score is reached. Match sessions are played from memory of the cards
// seen face up, routing sessions by solving each level with a shortest route.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

// Client talks to one session of the REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return errors.New(apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + c.sessionID + suffix
}

func (c *Client) CreateSession(ctx context.Context, kind service.Kind, presetID string) (*service.SessionInfo, error) {
	var info service.SessionInfo
	req := map[string]string{"kind": string(kind), "preset_id": presetID}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = info.ID
	return &info, nil
}

// Resume attaches the client to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	c.sessionID = sessionID
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &info); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return &info, nil
}

func (c *Client) State(ctx context.Context) (*service.StateView, error) {
	var view service.StateView
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) action(ctx context.Context, suffix string, body interface{}) (*service.StateView, error) {
	var result service.ActionResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath(suffix), body, &result); err != nil {
		return nil, err
	}
	return result.State, nil
}

func (c *Client) Start(ctx context.Context) (*service.StateView, error) {
	return c.action(ctx, "/start", nil)
}

func (c *Client) Tick(ctx context.Context, d time.Duration) (*service.StateView, error) {
	return c.action(ctx, "/tick", map[string]int64{"delta_ms": d.Milliseconds()})
}

func (c *Client) Select(ctx context.Context, index int) (*service.StateView, error) {
	return c.action(ctx, "/select", map[string]int{"index": index})
}

func (c *Client) Route(ctx context.Context, points []routing.Point) (*service.RouteResult, error) {
	var result service.RouteResult
	req := map[string][]routing.Point{"points": points}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/route"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil)
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "bruteforcer",
		Usage: "Play arcade sessions through the REST API until a target score",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL"},
			&cli.StringFlag{Name: "kind", Value: "match", Usage: "Puzzle kind (match, routing)"},
			&cli.StringFlag{Name: "preset", Usage: "Preset id for new sessions"},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.IntFlag{Name: "target", Value: 1000, Usage: "Score that counts as a win"},
			&cli.IntFlag{Name: "max-moves", Value: 500, Usage: "Maximum selections or routes per attempt"},
			&cli.IntFlag{Name: "max-attempts", Value: 10, Usage: "Maximum attempts before giving up"},
			&cli.DurationFlag{Name: "tick", Usage: "Advance the clock manually by this step while waiting (0 = rely on the server clock)"},
			&cli.DurationFlag{Name: "delay", Value: 100 * time.Millisecond, Usage: "Pause between polls while waiting"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := zerolog.InfoLevel
			if cmd.Bool("v") {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Logger()

			client := NewClient(cmd.String("url"))
			info, err := attach(ctx, client, cmd.String("continue"), service.Kind(cmd.String("kind")), cmd.String("preset"))
			if err != nil {
				return err
			}

			bot := &Bot{
				client:   client,
				tick:     cmd.Duration("tick"),
				delay:    cmd.Duration("delay"),
				maxMoves: int(cmd.Int("max-moves")),
			}
			target := int(cmd.Int("target"))
			maxAttempts := int(cmd.Int("max-attempts"))

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				log.Info().Int("attempt", attempt).Int("max", maxAttempts).Msg("🎮 starting attempt")

				score, err := bot.Play(ctx, info.Kind)
				if err != nil {
					return err
				}
				log.Info().Int("attempt", attempt).Int("score", score).Msg("attempt finished")

				if score >= target {
					color.Green.Printf("🎉 Reached %d points in attempt %d (session %s)\n", score, attempt, client.sessionID)
					return nil
				}
			}

			return fmt.Errorf("❌ failed to reach %d points after %d attempts (session %s)", target, maxAttempts, client.sessionID)
		},
	}
}

// attach resumes sessionID when given and alive, otherwise creates a session
func attach(ctx context.Context, client *Client, sessionID string, kind service.Kind, presetID string) (*service.SessionInfo, error) {
	if sessionID != "" {
		info, err := client.Resume(ctx, sessionID)
		if err == nil {
			log.Info().Str("session", info.ID).Str("kind", string(info.Kind)).Msg("🔄 resumed session")
			return info, nil
		}
		log.Warn().Err(err).Msg("failed to resume session, creating a new one")
	}

	info, err := client.CreateSession(ctx, kind, presetID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", info.ID).Str("kind", string(info.Kind)).Str("preset", info.PresetID).Msg("✨ session created")
	return info, nil
}
