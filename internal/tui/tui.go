package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"elevator-game/internal/models"
	"elevator-game/internal/session"
)

type uiState int

const (
	statePlaying uiState = iota
	stateGameOver
)

type model struct {
	state     uiState
	sess      *session.Session
	responder session.Responder
	changes   chan session.Snapshot
	snap      session.Snapshot

	textInput textinput.Model
	viewport  viewport.Model
	width     int
	height    int

	handoffDone bool
	status      string
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	elevatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D7FF"))

	guideStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	marvinStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AFAF5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FFF5F")).
			Bold(true)
)

// NewModel builds the TUI over an existing session. The responder is
// used to fetch replies to the player's turns while the conversation
// is still interactive; once autonomous, the session's scheduler takes
// over.
func NewModel(sess *session.Session, responder session.Responder) model {
	ti := textinput.New()
	ti.Placeholder = "Say something to the elevator..."
	ti.Focus()
	ti.CharLimit = 280
	ti.Width = 50

	// Each snapshot supersedes the previous one, so when the UI falls
	// behind the oldest pending snapshot is dropped rather than
	// blocking the session's append path.
	changes := make(chan session.Snapshot, 64)
	sess.SetOnChange(func(snap session.Snapshot) {
		for {
			select {
			case changes <- snap:
				return
			default:
				select {
				case <-changes:
				default:
				}
			}
		}
	})

	return model{
		state:     statePlaying,
		sess:      sess,
		responder: responder,
		changes:   changes,
		snap:      sess.Snapshot(),
		textInput: ti,
	}
}

type snapshotMsg struct {
	snap session.Snapshot
}

type replyDoneMsg struct{}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForChange())
}

// waitForChange blocks on the session's change feed.
func (m model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{snap: <-m.changes}
	}
}

// fetchReply asks the current persona for a response to the player in
// interactive mode. The responder is total, so this always appends.
func (m model) fetchReply(snap session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		turn := m.responder.Respond(context.Background(), snap.State.CurrentPersona, snap.State.CurrentFloor, snap.Turns)
		m.sess.Append(turn)
		return replyDoneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state != statePlaying {
				return m, tea.Quit
			}
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}
			m.textInput.Reset()

			switch input {
			case "/quit":
				return m, tea.Quit
			case "/save":
				path, err := models.ExportTranscript(m.logCopy())
				if err != nil {
					m.status = fmt.Sprintf("save failed: %v", err)
				} else {
					m.status = "transcript saved to " + path
				}
				return m, nil
			}

			if !m.sess.SubmitUserTurn(input) {
				m.status = "the elevator ignores you (out of moves?)"
				return m, nil
			}
			m.status = ""
			if m.snap.State.Mode == models.ModeInteractive {
				return m, m.fetchReply(m.sess.Snapshot())
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logWidth := int(float64(msg.Width) * 0.72)
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(logWidth, msg.Height-6)
		} else {
			m.viewport.Width = logWidth
			m.viewport.Height = msg.Height - 6
		}
		m.viewport.SetContent(m.renderLog())

	case snapshotMsg:
		m.snap = msg.snap
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()

		cmds := []tea.Cmd{m.waitForChange()}
		if beat := m.storyBeat(); beat != nil {
			cmds = append(cmds, beat)
		}
		if m.snap.State.HasWon || m.snap.State.MovesLeft <= 0 {
			m.state = stateGameOver
			m.sess.Close()
		}
		return m, tea.Batch(cmds...)

	case replyDoneMsg:
		return m, nil
	}

	if m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// storyBeat fires the hand-off once the elevator has been talked down
// to the ground floor: the guide speaks the sentinel and Marvin joins,
// flipping the conversation autonomous.
func (m *model) storyBeat() tea.Cmd {
	if m.handoffDone || !m.snap.State.FirstStageComplete || m.snap.State.MarvinJoined {
		return nil
	}
	m.handoffDone = true
	sess := m.sess
	return func() tea.Msg {
		sess.TriggerHandoff()
		sess.JoinMarvin()
		return nil
	}
}

func (m model) View() string {
	logView := m.viewport.View()
	sidebar := m.renderSidebar()

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, logView, sidebar)

	var bottom string
	switch m.state {
	case statePlaying:
		help := helpStyle.Render("Commands: /save, /quit. Esc exits.")
		if m.status != "" {
			help = helpStyle.Render(m.status)
		}
		bottom = "\n" + m.textInput.View() + "\n" + help
	case stateGameOver:
		if m.snap.State.HasWon {
			bottom = "\n" + bannerStyle.Render("The doors open on the top floor. Marvin sighs. You won.") + "\n" + helpStyle.Render("Press Enter to leave.")
		} else {
			bottom = "\n" + bannerStyle.Render("You are out of moves. The elevator hums, unmoved.") + "\n" + helpStyle.Render("Press Enter to leave.")
		}
	}

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, mainView, bottom) + "\n"
}

func (m model) renderLog() string {
	logWidth := m.viewport.Width
	if logWidth == 0 {
		logWidth = 72
	}

	var b strings.Builder
	for _, turn := range m.snap.Turns {
		switch turn.Persona {
		case models.PersonaUser:
			b.WriteString(userStyle.Width(logWidth).Render("> " + turn.Text))
		case models.PersonaElevator:
			b.WriteString(elevatorStyle.Width(logWidth).Render("ELEVATOR: " + turn.Text))
		case models.PersonaMarvin:
			b.WriteString(marvinStyle.Width(logWidth).Render("MARVIN: " + turn.Text))
		case models.PersonaGuide:
			b.WriteString(guideStyle.Width(logWidth).Render(turn.Text))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) renderSidebar() string {
	state := m.snap.State

	content := titleStyle.Render("FLOOR") + "\n"
	for f := models.TopFloor; f >= 1; f-- {
		marker := "  "
		if f == state.CurrentFloor {
			marker = "> "
		}
		content += fmt.Sprintf("%s%d\n", marker, f)
	}

	content += "\n" + titleStyle.Render("MOVES") + "\n"
	content += fmt.Sprintf("%d left\n", state.MovesLeft)

	content += "\n" + titleStyle.Render("MODE") + "\n"
	content += string(state.Mode) + "\n"

	if state.MarvinJoined {
		content += "\nMarvin is aboard.\n"
	}
	if state.FirstStageComplete {
		content += "Ground floor reached.\n"
	}

	sidebarWidth := int(float64(m.width) * 0.25)
	return sidebarStyle.Width(sidebarWidth).Height(m.viewport.Height).Render(content)
}

// logCopy rebuilds a MessageLog from the latest snapshot for export.
func (m model) logCopy() *models.MessageLog {
	log := models.NewMessageLog()
	for _, turn := range m.sess.Snapshot().Turns {
		log.Append(turn)
	}
	return log
}

// Run starts the TUI and blocks until the player quits.
func Run(sess *session.Session, responder session.Responder) error {
	p := tea.NewProgram(NewModel(sess, responder), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
