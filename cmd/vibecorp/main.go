// Command vibecorp is the CLI client for the vibecorpd daemon.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vibecorp/vibecorp/internal/version"
)

const defaultServer = "http://localhost:9090"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "vibecorpd server URL")
		token     = flag.String("token", os.Getenv("VIBECORP_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "login":
		err = cli.cmdLogin(rest)
	case "agents":
		err = cli.cmdAgents(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "channels":
		err = cli.cmdChannels(rest)
	case "history":
		err = cli.cmdHistory(rest)
	case "sim":
		err = cli.cmdSim(rest)
	case "watch":
		err = cli.cmdWatch(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `vibecorp — VibeCorp simulation CLI

Usage:
  vibecorp [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:9090)
  --token   <token>  JWT auth token (or $VIBECORP_TOKEN)

Commands:
  version                    print version
  status                     show server status
  login <user> <password>    obtain a JWT token
  agents                     list agents and their statuses
  tasks [agent-id]           list open tasks
  task create <agent> <title>  assign a task
  channels                   list channels
  history <channel-id>       show channel messages
  sim <start|stop|status>    control the simulation
  watch                      stream live activity events
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("vibecorp %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post performs a POST and decodes JSON response into v (may be nil).
func (c *Client) post(path string, body io.Reader, v any) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// --- status ---

func (c *Client) cmdStatus(_ []string) error {
	var result map[string]any
	if err := c.get("/api/status", &result); err != nil {
		return err
	}
	fmt.Printf("status:  %s\n", strVal(result["status"]))
	fmt.Printf("version: %s\n", strVal(result["version"]))
	fmt.Printf("uptime:  %s\n", strVal(result["uptime"]))
	return nil
}

// --- login ---

func (c *Client) cmdLogin(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: vibecorp login <user> <password>")
	}
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, args[0], args[1])
	var result map[string]string
	if err := c.post("/api/auth/login", strings.NewReader(body), &result); err != nil {
		return err
	}
	fmt.Println(result["token"])
	return nil
}

// --- agents ---

func (c *Client) cmdAgents(_ []string) error {
	var agents []map[string]any
	if err := c.get("/api/agents", &agents); err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("no agents")
		return nil
	}
	fmt.Printf("%-12s %-12s %-12s %-30s\n", "ID", "NAME", "ROLE", "STATUS")
	fmt.Println(strings.Repeat("-", 70))
	for _, a := range agents {
		fmt.Printf("%-12s %-12s %-12s %-30s\n",
			strVal(a["id"]),
			strVal(a["name"]),
			strVal(a["role"]),
			truncate(strVal(a["status"]), 29),
		)
	}
	return nil
}

// --- tasks ---

func (c *Client) cmdTasks(args []string) error {
	path := "/api/tasks"
	if len(args) > 0 {
		path = "/api/agents/" + args[0] + "/tasks"
	}
	var tasks []map[string]any
	if err := c.get(path, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	fmt.Printf("%-36s %-10s %-30s %-12s\n", "ID", "AGENT", "TITLE", "STATUS")
	fmt.Println(strings.Repeat("-", 92))
	for _, t := range tasks {
		fmt.Printf("%-36s %-10s %-30s %-12s\n",
			strVal(t["id"]),
			strVal(t["agent_id"]),
			truncate(strVal(t["title"]), 29),
			strVal(t["status"]),
		)
	}
	return nil
}

func (c *Client) cmdTask(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: vibecorp task create <agent-id> <title>")
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("usage: vibecorp task create <agent-id> <title>")
		}
		title := strings.Join(args[2:], " ")
		body := fmt.Sprintf(`{"agent_id":%q,"title":%q,"priority":3}`, args[1], title)
		var result map[string]any
		if err := c.post("/api/tasks", strings.NewReader(body), &result); err != nil {
			return err
		}
		fmt.Printf("created task %s for %s\n", strVal(result["id"]), args[1])
	default:
		return fmt.Errorf("unknown task subcommand: %s", args[0])
	}
	return nil
}

// --- channels ---

func (c *Client) cmdChannels(_ []string) error {
	var channels []map[string]any
	if err := c.get("/api/channels", &channels); err != nil {
		return err
	}
	if len(channels) == 0 {
		fmt.Println("no channels")
		return nil
	}
	fmt.Printf("%-36s %-20s %-8s\n", "ID", "NAME", "KIND")
	fmt.Println(strings.Repeat("-", 66))
	for _, ch := range channels {
		fmt.Printf("%-36s %-20s %-8s\n",
			strVal(ch["id"]),
			strVal(ch["name"]),
			strVal(ch["kind"]),
		)
	}
	return nil
}

func (c *Client) cmdHistory(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: vibecorp history <channel-id>")
	}
	var msgs []map[string]any
	if err := c.get("/api/channels/"+args[0]+"/messages", &msgs); err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n",
			strVal(m["created_at"]),
			strVal(m["sender_id"]),
			strVal(m["content"]),
		)
	}
	return nil
}

// --- simulation control ---

func (c *Client) cmdSim(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: vibecorp sim <start|stop|status>")
	}
	var result map[string]any
	switch args[0] {
	case "start":
		if err := c.post("/api/sim/start", nil, &result); err != nil {
			return err
		}
	case "stop":
		if err := c.post("/api/sim/stop", nil, &result); err != nil {
			return err
		}
	case "status":
		if err := c.get("/api/sim", &result); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown sim subcommand: %s", args[0])
	}
	fmt.Printf("running: %v\n", result["running"])
	return nil
}

// --- watch ---

// cmdWatch streams SSE events to stdout until interrupted.
func (c *Client) cmdWatch(_ []string) error {
	url := c.BaseURL + "/events"
	if c.Token != "" {
		url += "?token=" + c.Token
	}
	resp, err := http.Get(url) //nolint:gosec,noctx
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			fmt.Println(strings.TrimPrefix(line, "data: "))
		}
	}
	return scanner.Err()
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
