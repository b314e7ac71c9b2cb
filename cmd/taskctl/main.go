// Package main implements the taskctl CLI for manual operations against the
// taskd HTTP server.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the taskd HTTP server
	serverURL string
	// authToken is the bearer token, when the server requires one
	authToken string
	// userID identifies the acting user
	userID string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "CLI for the taskd task assistant",
	Long: `taskctl is a command-line interface for the taskd HTTP server.
It manages tasks directly and can hold a chat conversation with the assistant.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "taskd server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("TASKD_TOKEN"), "bearer token (defaults to $TASKD_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser(), "user id (defaults to $TASKD_USER or $USER)")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(chatCmd)
}

func defaultUser() string {
	if u := os.Getenv("TASKD_USER"); u != "" {
		return u
	}
	return os.Getenv("USER")
}

// Task mirrors the server's task JSON.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
}

// ChatResponse mirrors the server's chat reply.
type ChatResponse struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List your tasks, optionally filtered by status.

Examples:
  taskctl list
  taskctl list --status pending`,
	RunE: runList,
}

var (
	addPriority    string
	addDue         string
	addDescription string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task. The due date may be natural language.

Examples:
  taskctl add "buy milk"
  taskctl add "file taxes" --priority high --due "friday at noon"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var completeCmd = &cobra.Command{
	Use:   "complete <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the assistant",
	Long: `Send one message to the assistant, or start an interactive session
when no message is given. A fresh session id is generated per invocation.

Examples:
  taskctl chat "remind me to buy milk tomorrow"
  taskctl chat`,
	RunE: runChat,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter: pending, completed, or all")
	addCmd.Flags().StringVar(&addPriority, "priority", "", "low, medium, or high")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date, RFC3339 or natural language")
	addCmd.Flags().StringVar(&addDescription, "description", "", "task description")
}

func runList(cmd *cobra.Command, args []string) error {
	path := "/api/v1/tasks"
	if listStatus != "" {
		path += "?status=" + listStatus
	}
	var tasks []Task
	if err := doRequest(http.MethodGet, path, nil, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}
	for _, t := range tasks {
		fmt.Println(renderTask(t))
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	body := map[string]string{"title": strings.Join(args, " ")}
	if addPriority != "" {
		body["priority"] = addPriority
	}
	if addDue != "" {
		body["due_date"] = addDue
	}
	if addDescription != "" {
		body["description"] = addDescription
	}
	var created Task
	if err := doRequest(http.MethodPost, "/api/v1/tasks", body, &created); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", renderTask(created))
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}
	var updated Task
	if err := doRequest(http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/complete", id), nil, &updated); err != nil {
		return err
	}
	fmt.Printf("Completed %s\n", renderTask(updated))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}
	if err := doRequest(http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", id), nil, nil); err != nil {
		return err
	}
	fmt.Printf("Deleted task #%d\n", id)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	sessionID := uuid.NewString()

	if len(args) > 0 {
		return chatTurn(sessionID, strings.Join(args, " "))
	}

	fmt.Println("Chatting with taskd. Empty line or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if err := chatTurn(sessionID, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func chatTurn(sessionID, message string) error {
	body := map[string]string{
		"user_id":    userID,
		"session_id": sessionID,
		"message":    message,
	}
	var resp ChatResponse
	if err := doRequest(http.MethodPost, "/api/v1/chat", body, &resp); err != nil {
		return err
	}
	fmt.Println(resp.Message)
	return nil
}

func renderTask(t Task) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	line := fmt.Sprintf("%s #%d %s (%s)", box, t.ID, t.Title, t.Priority)
	if t.DueDate != nil {
		line += " due " + t.DueDate.Local().Format("Mon, Jan 2 2006 3:04 PM")
	}
	return line
}

// doRequest sends a JSON request to the server and decodes the response
// into out when non-nil. Non-2xx responses become errors carrying the
// server's message.
func doRequest(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
