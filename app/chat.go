package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"switchboard/core"
	"switchboard/core/provider"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ChatOptions controls how a reply is requested and printed.
type ChatOptions struct {
	System        string
	ShowReasoning bool
	Markdown      bool // buffer the reply and render it as markdown at the end
	Width         int  // wrap width for markdown rendering
}

// Reply is the assembled result of one streamed completion.
type Reply struct {
	Text      string
	Reasoning string
	Usage     *provider.Usage
	Cost      float64
	Model     provider.ModelInfo
}

// styles mirrors the palette of the interactive client.
type styles struct {
	reasoning lipgloss.Style
	footer    lipgloss.Style
	header    lipgloss.Style
	accent    lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		reasoning: r.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		footer:    r.NewStyle().Foreground(lipgloss.Color("240")),
		header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("93")),
		accent:    r.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

// Chat streams one completion for history to out and records its usage.
// On error the partial reply received so far is returned with it.
func (a *Application) Chat(ctx context.Context, history []provider.Message, out io.Writer, opts ChatOptions) (Reply, error) {
	st := newStyles(out)

	it, err := a.Provider.CreateMessage(ctx, opts.System, history)
	if err != nil {
		return Reply{}, err
	}
	defer it.Close()

	var text, reasoning strings.Builder
	var reply Reply
	inReasoning := false
	for {
		chunk, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			reply.Text, reply.Reasoning = text.String(), reasoning.String()
			return reply, err
		}

		switch chunk.Event {
		case provider.EventReasoning:
			reasoning.WriteString(chunk.Text)
			if opts.ShowReasoning {
				fmt.Fprint(out, st.reasoning.Render(chunk.Text))
				inReasoning = true
			}
		case provider.EventText:
			if inReasoning {
				fmt.Fprint(out, "\n\n")
				inReasoning = false
			}
			text.WriteString(chunk.Text)
			if !opts.Markdown {
				fmt.Fprint(out, chunk.Text)
			}
		case provider.EventUsage:
			// The usage chunk is last, so the snapshot already reflects any re-routing.
			reply.Model = a.Provider.GetModel().Info
			reply.Usage = chunk.Usage
			reply.Cost = chunk.Cost
			a.Tracker.RecordChunk(reply.Model, chunk, core.SourcePrompt)
		}
	}
	reply.Text, reply.Reasoning = text.String(), reasoning.String()

	if opts.Markdown {
		rendered, err := renderMarkdown(reply.Text, opts.Width)
		if err != nil {
			a.Log.Warn().Err(err).Msg("rendering markdown")
			rendered = reply.Text
		}
		fmt.Fprint(out, rendered)
	}
	fmt.Fprintln(out)
	if reply.Usage != nil {
		fmt.Fprintln(out, st.footer.Render(footer(reply, a.Tracker.Snapshot())))
	}
	return reply, nil
}

func renderMarkdown(text string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// footer summarizes the call and the session so far.
func footer(r Reply, session core.CostSnapshot) string {
	call := core.CostSnapshot{Total: *r.Usage, TotalCost: r.Cost}
	return fmt.Sprintf("%s · %s · %s · session %s %s",
		r.Model.Name, call.FormatTokens(), call.FormatCost(), session.FormatTokens(), session.FormatCost())
}

// Conversation keeps an append-only history across turns of an interactive chat.
type Conversation struct {
	History []provider.Message
}

// Ask appends a user turn, streams the reply and appends it as an assistant
// turn. A failed turn is removed so the next Ask starts from a clean history.
func (c *Conversation) Ask(ctx context.Context, a *Application, content []provider.ContentBlock, out io.Writer, opts ChatOptions) (Reply, error) {
	c.History = append(c.History, provider.Message{Role: provider.RoleUser, Content: content})
	reply, err := a.Chat(ctx, c.History, out, opts)
	if err != nil || reply.Text == "" {
		c.History = c.History[:len(c.History)-1]
		if err == nil {
			err = fmt.Errorf("empty reply")
		}
		return reply, err
	}
	c.History = append(c.History, provider.Message{
		Role:    provider.RoleAssistant,
		Content: []provider.ContentBlock{provider.TextBlock(reply.Text)},
	})
	return reply, nil
}
