package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Arcade Puzzles",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Arcade Puzzles - MCP Interface

Two timed puzzles, each played in its own session. The clock runs on the
server, so think fast.

MATCH: flip cards two at a time (select_card) and find every pair.
ROUTING: draw a route from S to E around obstacles (route).

AVAILABLE TOOLS:
- list_presets: tuning presets for new sessions
- create_session: new match or routing session
- list_sessions / get_state: inspect sessions
- start_game: start or restart a session
- select_card: flip a card in a match session
- route: submit a whole route in a routing session
- close_session: end a session
- game_instructions: full rules`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID returned by create_session",
	}
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List the tuning presets available for new sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new puzzle session. It starts paused; call start_game to begin.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"match", "routing"},
					"description": "Which puzzle to play",
				},
				"preset_id": map[string]interface{}{
					"type":        "string",
					"description": "Preset id from list_presets (optional, defaults to classic)",
				},
			},
			Required: []string{"kind"},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all live sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_state",
		Description: "Show the current board, score and remaining time of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Start or restart a session. Score resets and the countdown begins.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleStart)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_card",
		Description: "Flip one card of a match session by its index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"index": map[string]interface{}{
					"type":        "integer",
					"description": "Card index as shown by get_state",
				},
			},
			Required: []string{"session_id", "index"},
		},
	}, c.handleSelectCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name: "route",
		Description: "Draw a route in a routing session. The first point must be the start cell; " +
			"each following point must be an orthogonal neighbour. Drawing stops at the first invalid point.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"points": map[string]interface{}{
					"type":        "array",
					"description": "Cells in drawing order, e.g. [{\"x\":0,\"y\":2},{\"x\":1,\"y\":2}]",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"x": map[string]interface{}{"type": "integer"},
							"y": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"x", "y"},
					},
				},
			},
			Required: []string{"session_id", "points"},
		},
	}, c.handleRoute)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_session",
		Description: "Close a session and disconnect its viewers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleCloseSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete rules of both puzzles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func requireSessionID(args map[string]interface{}) (string, error) {
	id, _ := args["session_id"].(string)
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return id, nil
}

// Tool handlers

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []*config.PresetInfo
	if err := c.apiCall(ctx, "GET", "/api/presets", nil, &presets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Presets (%d):\n\n", len(presets))
	for _, p := range presets {
		fmt.Fprintf(&b, "- %s: %s (%d pairs, %dx%d grid)", p.ID, p.Name, p.PairCount, p.GridSize, p.GridSize)
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	kind, _ := args["kind"].(string)
	presetID, _ := args["preset_id"].(string)

	body := map[string]string{"kind": kind}
	if presetID != "" {
		body["preset_id"] = presetID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created %s session: %s\nPreset: %s\n\nCall start_game with this session_id to begin.\n",
		info.Kind, info.ID, info.PresetName)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		phase := ""
		if s.State != nil {
			phase = s.State.Phase
		}
		fmt.Fprintf(&b, "- %s (%s, preset %s, %s, created %s)\n",
			s.ID, s.Kind, s.PresetID, phase, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var state service.StateView
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+sessionID+"/state", nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatState(&state)), nil
}

func (c *Client) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/start", nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAction(&result)), nil
}

func (c *Client) handleSelectCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, err := requireSessionID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var input struct {
		Index *int `mapstructure:"index"`
	}
	if err := mapstructure.WeakDecode(args, &input); err != nil || input.Index == nil {
		return mcp.NewToolResultError("index must be an integer"), nil
	}

	var result service.ActionResult
	body := map[string]int{"index": *input.Index}
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/select", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAction(&result)), nil
}

func (c *Client) handleRoute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, err := requireSessionID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var points []routing.Point
	if err := mapstructure.WeakDecode(args["points"], &points); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("points must be a list of {x, y} cells: %v", err)), nil
	}
	if len(points) == 0 {
		return mcp.NewToolResultError("points must contain at least the start cell"), nil
	}

	var result service.RouteResult
	body := map[string]interface{}{"points": points}
	if err := c.apiCall(ctx, "POST", "/api/sessions/"+sessionID+"/route", body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRouteResult(&result)), nil
}

func (c *Client) handleCloseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSessionID(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+sessionID, nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s closed\n", sessionID)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `ARCADE PUZZLES - RULES

Both puzzles run against a countdown that the server advances in real time.
When it reaches zero the session is over; start_game plays again and keeps
your best score.

=== MATCH ===
The board shows face-down cards, each symbol exactly twice.
- select_card flips one card. Two flipped cards are compared at once.
- A pair stays face up, scores 100 x combo and adds 2 seconds (capped at 45).
- The combo starts at 1, grows with each pair in a row (up to 5) and resets
  on a mismatch.
- A mismatch stays visible for 0.8 seconds before both cards flip back.
  Cards cannot be flipped while two are pending.
- Clearing the board deals a new one after a short pause and adds 5 seconds.
Presets may change these numbers.

Board legend: [index:label] for face-up cards, [index:??] for hidden ones,
matched cards show as [index:label*].

=== ROUTING ===
The grid shows a start S, an end E and obstacles #.
- A route starts on S and moves one cell up, down, left or right at a time.
- It may not enter obstacles, leave the grid or revisit a cell.
- Stepping back onto the previous cell undoes the last step.
- Reaching E solves the level: score +1 and a new puzzle with more obstacles
  and less time (15 seconds, 0.8 less per point, never under 3).
- Use route with the whole list of cells, starting with S. Drawing stops at
  the first invalid cell and an unfinished route is discarded.

Coordinates are {x, y} with x the column and y the row, both from 0 at the
top-left corner.
`

// Formatting

func formatAction(result *service.ActionResult) string {
	var b strings.Builder
	b.WriteString(formatEvents(result.Events))
	b.WriteString(formatState(result.State))
	return b.String()
}

func formatEvents(events []event.Event) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Events:")
	for _, e := range events {
		fmt.Fprintf(&b, " %s", e.Kind)
		if len(e.Target) > 0 {
			fmt.Fprintf(&b, "%v", e.Target)
		}
	}
	b.WriteString("\n\n")
	return b.String()
}

func formatState(state *service.StateView) string {
	if state == nil {
		return "No state\n"
	}
	switch {
	case state.Match != nil:
		return formatMatchState(state.SessionID, state.Match)
	case state.Routing != nil:
		return formatRoutingState(state.SessionID, state.Routing)
	}
	return fmt.Sprintf("Session %s: %s\n", state.SessionID, state.Phase)
}

func formatMatchState(sessionID string, st *match.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s | match | %s\n", sessionID, st.Phase)
	fmt.Fprintf(&b, "Score: %d  Combo: x%d  Best: %d  Time: %.1fs  Board: %d\n\n",
		st.Score, st.Combo, st.BestScore, st.TimeRemaining, st.Level)

	cols := 4
	for i, card := range st.Cards {
		switch {
		case card.IsMatched:
			fmt.Fprintf(&b, "[%2d:%s*] ", i, card.Label)
		case card.IsFlipped:
			fmt.Fprintf(&b, "[%2d:%s] ", i, card.Label)
		default:
			fmt.Fprintf(&b, "[%2d:??] ", i)
		}
		if (i+1)%cols == 0 {
			b.WriteString("\n")
		}
	}
	if len(st.Cards)%cols != 0 {
		b.WriteString("\n")
	}

	if st.IsOver {
		fmt.Fprintf(&b, "\nTime is up. Final score %d.", st.Score)
		if st.NewRecord {
			b.WriteString(" New record!")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatRoutingState(sessionID string, st *routing.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s | routing | %s\n", sessionID, st.Phase)
	fmt.Fprintf(&b, "Score: %d  Time: %.1fs  Level: %d\n", st.Score, st.TimeRemaining, st.Level)

	if st.Start == nil || st.End == nil {
		b.WriteString("\nNo level loaded yet, call start_game.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Start: %s  End: %s\n\n", st.Start, st.End)
	b.WriteString(renderGrid(st))

	if st.IsOver {
		fmt.Fprintf(&b, "\nTime is up. Final score %d.\n", st.Score)
	}
	return b.String()
}

// renderGrid draws the level with column and row numbers
func renderGrid(st *routing.State) string {
	cells := make([][]byte, st.GridSize)
	for y := range cells {
		cells[y] = bytes.Repeat([]byte{'.'}, st.GridSize)
	}
	for _, o := range st.Obstacles {
		cells[o.Y][o.X] = '#'
	}
	for _, p := range st.Path {
		cells[p.Y][p.X] = '*'
	}
	cells[st.Start.Y][st.Start.X] = 'S'
	cells[st.End.Y][st.End.X] = 'E'

	var b strings.Builder
	b.WriteString("   ")
	for x := 0; x < st.GridSize; x++ {
		fmt.Fprintf(&b, "%d", x%10)
	}
	b.WriteString("\n")
	for y, row := range cells {
		fmt.Fprintf(&b, "%2d %s\n", y, row)
	}
	return b.String()
}

func formatRouteResult(result *service.RouteResult) string {
	var b strings.Builder
	switch {
	case result.Solved:
		fmt.Fprintf(&b, "Solved! %d/%d points drawn. Next level loaded.\n", result.Applied, result.Requested)
	case result.StoppedAt > 0:
		fmt.Fprintf(&b, "Stopped at point %d of %d: that cell is not a valid next step. Route discarded.\n",
			result.StoppedAt, result.Requested)
	default:
		fmt.Fprintf(&b, "Route did not reach the end after %d/%d points. Route discarded.\n",
			result.Applied, result.Requested)
	}
	b.WriteString("\n")
	b.WriteString(formatAction(&result.ActionResult))
	return b.String()
}
