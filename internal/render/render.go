// Package render provides terminal output formatting.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joss/aiops/internal/audit"
	"github.com/joss/aiops/internal/state"
)

// Renderer handles operator-facing output.
type Renderer struct {
	out    io.Writer
	pretty bool
}

// New creates a renderer. Pretty output is used when w is a terminal.
func New(w io.Writer) *Renderer {
	pretty := false
	if f, ok := w.(*os.File); ok {
		pretty = term.IsTerminal(int(f.Fd()))
	}
	return &Renderer{out: w, pretty: pretty}
}

// NewPlain creates a renderer with pretty output forced off (tests,
// piped output).
func NewPlain(w io.Writer) *Renderer {
	return &Renderer{out: w}
}

// Prompt writes an input prompt without a trailing newline.
func (r *Renderer) Prompt(s string) {
	if r.pretty {
		fmt.Fprint(r.out, color.CyanString(s))
		return
	}
	fmt.Fprint(r.out, s)
}

// Println writes a formatted line.
func (r *Renderer) Println(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Success writes a positive status line.
func (r *Renderer) Success(format string, args ...any) {
	if r.pretty {
		fmt.Fprintln(r.out, color.GreenString(format, args...))
		return
	}
	r.Println(format, args...)
}

// Warn writes a warning line.
func (r *Renderer) Warn(format string, args ...any) {
	if r.pretty {
		fmt.Fprintln(r.out, color.YellowString(format, args...))
		return
	}
	r.Println(format, args...)
}

// Error writes an error line.
func (r *Renderer) Error(format string, args ...any) {
	if r.pretty {
		fmt.Fprintln(r.out, color.RedString(format, args...))
		return
	}
	r.Println(format, args...)
}

// Assistant writes a model reply.
func (r *Renderer) Assistant(text string) {
	if r.pretty {
		fmt.Fprintf(r.out, "\n%s\n\n", color.New(color.Bold).Sprint(text))
		return
	}
	fmt.Fprintf(r.out, "\n%s\n\n", text)
}

// Script displays the proposed script between rulers.
func (r *Renderer) Script(content string) {
	ruler := strings.Repeat("=", 10)
	r.Println("\n%s Proposed Script %s", ruler, ruler)
	fmt.Fprintln(r.out, strings.TrimRight(content, "\n"))
	r.Println("%s\n", strings.Repeat("=", 34))
}

// ExecResult reports a completed script execution.
func (r *Renderer) ExecResult(exitCode int, stdout, stderr string, timedOut bool) {
	switch {
	case timedOut:
		r.Error("Execution timed out")
	case exitCode == 0:
		r.Success("Script completed successfully (exit 0)")
	default:
		r.Error("Script failed (exit %d)", exitCode)
	}
	if strings.TrimSpace(stdout) != "" {
		r.Println("--- stdout ---\n%s", strings.TrimRight(stdout, "\n"))
	}
	if strings.TrimSpace(stderr) != "" {
		r.Println("--- stderr ---\n%s", strings.TrimRight(stderr, "\n"))
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true)

func (r *Renderer) table(headers []string, rows [][]string) {
	t := table.New().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	fmt.Fprintln(r.out, t.Render())
}

// Sessions renders the session listing.
func (r *Renderer) Sessions(sessions map[string]*state.Session, currentID string, order []string) {
	if len(sessions) == 0 {
		r.Warn("No sessions yet. Create one with 'new <title>'.")
		return
	}

	rows := make([][]string, 0, len(sessions))
	for _, id := range order {
		sess := sessions[id]
		active := ""
		if id == currentID {
			active = "*"
		}
		lastResp := sess.LastResponseID
		if len(lastResp) > 15 {
			lastResp = lastResp[:12] + "..."
		}
		rows = append(rows, []string{
			active,
			id,
			sess.Title,
			sess.CreatedAt().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", len(sess.Messages)),
			lastResp,
		})
	}
	r.table([]string{"Active", "ID", "Title", "Created", "#Msgs", "LastResp"}, rows)
}

// History renders the last messages of a session.
func (r *Renderer) History(messages []state.Message) {
	if len(messages) == 0 {
		r.Warn("No messages yet.")
		return
	}
	rows := make([][]string, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, []string{string(m.Role), m.Content})
	}
	r.table([]string{"Role", "Content"}, rows)
}

// Runs renders recent audit events.
func (r *Renderer) Runs(events []audit.Event) {
	if len(events) == 0 {
		r.Warn("No recorded runs.")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.StartedAt.Local().Format("15:04:05"),
			string(e.Category),
			e.Operation,
			string(e.Status),
			fmt.Sprintf("%d", e.ExitCode),
			(time.Duration(e.Duration) * time.Millisecond).String(),
		})
	}
	r.table([]string{"Time", "Category", "Operation", "Status", "Exit", "Duration"}, rows)
}

// Help renders the interactive command reference.
func (r *Renderer) Help() {
	rows := [][]string{
		{"help", "Show this help message"},
		{"list", "List all sessions"},
		{"status", "Show the active session"},
		{"new <title>", "Create a session"},
		{"switch <id>", "Switch to another session"},
		{"title <name>", "Rename the active session"},
		{"delete <id>", "Delete a session"},
		{"clear", "Clear the active session history"},
		{"history", "Show the last 10 messages"},
		{"exit / quit", "Quit"},
	}
	r.table([]string{"Command", "Description"}, rows)
	r.Println("Anything else is sent to the agent as a request.")
}
