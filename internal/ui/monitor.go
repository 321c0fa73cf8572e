package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/easywifi/internal/indicator"
	"github.com/muurk/easywifi/internal/provision"
)

const historyLen = 8

// EventMsg carries a provisioning event into the program.
type EventMsg provision.Event

// DoneMsg reports that Start returned.
type DoneMsg struct {
	Result provision.Result
	Err    error
}

type monitorKeyMap struct {
	Quit key.Binding
}

// Monitor is a live view of a provisioning run.
type Monitor struct {
	Title    string
	Event    provision.Event
	Started  bool
	History  []string
	Done     *DoneMsg
	Stopping bool
	Width    int

	spinner spinner.Model
	keys    monitorKeyMap
	cancel  context.CancelFunc
}

// NewMonitor creates the model. cancel stops the run when the user quits.
func NewMonitor(title string, cancel context.CancelFunc) Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	return Monitor{
		Title:   title,
		Width:   MinTerminalWidth,
		spinner: s,
		cancel:  cancel,
		keys: monitorKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "stop"),
			),
		},
	}
}

func (m Monitor) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.Done != nil {
				return m, tea.Quit
			}
			m.Stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case EventMsg:
		ev := provision.Event(msg)
		if !m.Started || ev.State != m.Event.State {
			m.History = append(m.History, describeEvent(ev))
			if len(m.History) > historyLen {
				m.History = m.History[len(m.History)-historyLen:]
			}
		}
		m.Event = ev
		m.Started = true

	case DoneMsg:
		m.Done = &msg
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func describeEvent(ev provision.Event) string {
	switch ev.State {
	case provision.StateConnecting:
		return "connecting to " + ev.SSID
	case provision.StateAPListening:
		return fmt.Sprintf("access point %s up at %s", ev.APName, ev.APAddr)
	case provision.StateAPClientPresent:
		return "client joined the access point"
	default:
		return ev.State.String()
	}
}

func (m Monitor) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(strings.ToUpper(m.Title)))
	b.WriteString("\n\n")

	ev := m.Event
	status := m.spinner.View() + " "
	if m.Done != nil {
		status = ""
	}
	status += indicator.Swatch(ev.Color) + " " + ValueStyle.Render(ev.State.String())
	b.WriteString("  " + status + "\n\n")

	row := func(k, v string) {
		b.WriteString("  " + KeyStyle.Render(k+":") + " " + ValueStyle.Render(v) + "\n")
	}
	if ev.SSID != "" {
		row("Network", ev.SSID)
	}
	row("Attempts", fmt.Sprintf("%d this cycle, %d total", ev.Attempts, ev.Total))
	if ev.APSessions > 0 {
		row("Portal", fmt.Sprintf("%s at %s (session %d)", ev.APName, ev.APAddr, ev.APSessions))
		row("DNS replies", fmt.Sprintf("%d", ev.Requests))
		if len(ev.Networks) > 0 {
			row("Scan", strings.Join(ev.Networks, ", "))
		}
	}

	if len(m.History) > 0 {
		b.WriteString("\n")
		for _, h := range m.History {
			b.WriteString(HintStyle.Render("  · "+h) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.Done != nil && m.Done.Err == nil:
		b.WriteString(SuccessTitleStyle.Render("  "+SuccessMarker+" connected to "+m.Done.Result.SSID) + "\n")
	case m.Done != nil:
		b.WriteString(ErrorTitleStyle.Render("  "+FailureMarker+" "+m.Done.Err.Error()) + "\n")
	case m.Stopping:
		b.WriteString(HintStyle.Render("  stopping...") + "\n")
	default:
		b.WriteString(HintStyle.Render("  "+m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc) + "\n")
	}
	return b.String()
}

// RunFunc starts a provisioning run, reporting events to observe.
type RunFunc func(ctx context.Context, observe func(provision.Event)) (provision.Result, error)

// RunMonitor runs fn under a live view on out until it returns.
func RunMonitor(ctx context.Context, title string, in io.Reader, out io.Writer, fn RunFunc) (provision.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewMonitor(title, cancel), tea.WithInput(in), tea.WithOutput(out))

	done := make(chan DoneMsg, 1)
	go func() {
		res, err := fn(ctx, func(ev provision.Event) { p.Send(EventMsg(ev)) })
		msg := DoneMsg{Result: res, Err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		d := <-done
		if d.Err == nil {
			d.Err = err
		}
		return d.Result, d.Err
	}

	cancel()
	d := <-done
	return d.Result, d.Err
}
