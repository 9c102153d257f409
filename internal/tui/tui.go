package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/internal/keeper"
	"github.com/lox/faceworth/internal/poll"
	"github.com/lox/faceworth/internal/tron"
	"github.com/lox/faceworth/internal/wallet"
)

const (
	notInstalledText = "Wallet is not installed yet."
	notLoggedInText  = "Wallet is installed but you must first log in. " +
		"Unlock the account in your bridge wallet, or set a private key and restart."
	photoPlaceholder = "Enter some random stuff and it will be hashed just like a photo"
)

// Form is the poll creation form.
type Form interface {
	State() poll.PendingPoll
	SetPhoto(photo string)
	CanSubmit() bool
	Submit(ctx context.Context) (string, error)
}

// Voter commits and reveals scores for a poll.
type Voter interface {
	Commit(ctx context.Context, poll tron.Hash, score uint8) (string, error)
	Reveal(ctx context.Context, poll tron.Hash, score uint8) (string, error)
}

// Messages delivered to a running program from background loops.
type (
	StatusMsg   wallet.Status
	SnapshotMsg keeper.Snapshot
	PollMsg     poll.ObservedPoll
	AlertMsg    poll.Alert
	// QuitMsg is a custom message to signal quit
	QuitMsg     struct{}
)

type actionDoneMsg struct {
	action string
	err    error
}

type pane int

const (
	paneForm pane = iota
	panePolls
	paneAlerts
)

// Model is the Bubble Tea model for the FaceWorth client.
type Model struct {
	ctx    context.Context
	form   Form
	voter  Voter
	logger *log.Logger

	status  wallet.Status
	account keeper.Snapshot
	polls   []poll.ObservedPoll
	busy    bool

	// UI components
	photoInput  textinput.Model
	pollTable   table.Model
	logViewport viewport.Model
	alertLog    []string
	focusedPane pane

	width    int
	height   int
	quitting bool

	// Test mode
	testMode    bool
	capturedLog []string
}

// NewModel creates a model for an interactive session.
func NewModel(ctx context.Context, form Form, voter Voter, status wallet.Status, logger *log.Logger) *Model {
	return NewModelWithOptions(ctx, form, voter, status, logger, false)
}

// NewModelWithOptions creates a model with the test mode option.
func NewModelWithOptions(ctx context.Context, form Form, voter Voter, status wallet.Status, logger *log.Logger, testMode bool) *Model {
	ti := textinput.New()
	ti.Placeholder = photoPlaceholder
	ti.CharLimit = 512
	ti.Width = 80
	ti.Prompt = "> "
	ti.PromptStyle = ButtonStyle
	ti.TextStyle = ValueStyle

	tbl := table.New(
		table.WithColumns([]table.Column{
			{Title: "Hash", Width: 13},
			{Title: "Creator", Width: 13},
			{Title: "Face Photo", Width: 13},
			{Title: "Starting", Width: 9},
			{Title: "Commit End", Width: 10},
			{Title: "Reveal End", Width: 10},
			{Title: "Score", Width: 5},
		}),
		table.WithHeight(5),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderBottom(true).BorderStyle(lipgloss.NormalBorder())
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FAFAFA")).Background(accentColor)
	tbl.SetStyles(styles)

	m := &Model{
		ctx:         ctx,
		form:        form,
		voter:       voter,
		logger:      logger.WithPrefix("tui"),
		status:      status,
		photoInput:  ti,
		pollTable:   tbl,
		logViewport: viewport.New(10, 5),
		testMode:    testMode,
	}
	m.setFocus(m.firstPane())
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)
		return m, nil

	case StatusMsg:
		m.status = wallet.Status(msg)
		if m.status.LoggedIn {
			m.AddLogEntry("Wallet logged in")
		}
		return m, nil

	case SnapshotMsg:
		m.account = keeper.Snapshot(msg)
		return m, nil

	case PollMsg:
		m.polls = append(m.polls, poll.ObservedPoll(msg))
		m.pollTable.SetRows(m.rows())
		return m, nil

	case AlertMsg:
		m.addAlert(poll.Alert(msg))
		return m, nil

	case actionDoneMsg:
		m.busy = false
		if msg.action == "submit" {
			m.photoInput.SetValue("")
		}
		if msg.err != nil && !errors.Is(msg.err, poll.ErrSubmitDisabled) {
			m.logger.Debug("Action failed", "action", msg.action, "error", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			m.setFocus(m.nextPane())
			return m, nil
		}

		switch m.focusedPane {
		case paneForm:
			if msg.String() == "enter" {
				return m, m.submit()
			}
		case panePolls:
			switch msg.String() {
			case "c":
				return m, m.vote("commit")
			case "r":
				return m, m.vote("reveal")
			}
		}
	}

	var cmd tea.Cmd
	switch m.focusedPane {
	case paneForm:
		before := m.photoInput.Value()
		m.photoInput, cmd = m.photoInput.Update(msg)
		if after := m.photoInput.Value(); after != before {
			m.form.SetPhoto(after)
		}
		cmds = append(cmds, cmd)
	case panePolls:
		m.pollTable, cmd = m.pollTable.Update(msg)
		cmds = append(cmds, cmd)
	case paneAlerts:
		m.logViewport, cmd = m.logViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	if !m.status.LoggedIn || !m.form.CanSubmit() {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		_, err := m.form.Submit(ctx)
		return actionDoneMsg{action: "submit", err: err}
	}
}

func (m *Model) vote(action string) tea.Cmd {
	selected, ok := m.Selected()
	if !ok || m.busy {
		return nil
	}
	m.busy = true

	ctx, voter := m.ctx, m.voter
	return func() tea.Msg {
		var err error
		if action == "commit" {
			_, err = voter.Commit(ctx, selected.Hash, selected.Score)
		} else {
			_, err = voter.Reveal(ctx, selected.Hash, selected.Score)
		}
		return actionDoneMsg{action: action, err: err}
	}
}

// Selected returns the poll under the table cursor.
func (m *Model) Selected() (poll.ObservedPoll, bool) {
	i := m.pollTable.Cursor()
	if i < 0 || i >= len(m.polls) {
		return poll.ObservedPoll{}, false
	}
	return m.polls[i], true
}

func (m *Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.polls))
	for _, p := range m.polls {
		rows = append(rows, table.Row{
			tron.Shorten(p.Hash.Hex()),
			p.Creator.Short(),
			tron.Shorten(p.FaceHash.Hex()),
			fmt.Sprint(p.StartingBlock),
			fmt.Sprint(p.CommitEndingBlock),
			fmt.Sprint(p.RevealEndingBlock),
			fmt.Sprint(p.Score),
		})
	}
	return rows
}

func (m *Model) firstPane() pane {
	if m.status.LoggedIn {
		return paneForm
	}
	return panePolls
}

func (m *Model) nextPane() pane {
	next := (m.focusedPane + 1) % 3
	if next == paneForm && !m.status.LoggedIn {
		next = panePolls
	}
	return next
}

func (m *Model) setFocus(p pane) {
	m.focusedPane = p
	if p == paneForm {
		m.photoInput.Focus()
	} else {
		m.photoInput.Blur()
	}
	if p == panePolls {
		m.pollTable.Focus()
	} else {
		m.pollTable.Blur()
	}
}

func (m *Model) resize() {
	// header, form, titles, borders and help
	fixed := 16
	available := m.height - fixed
	if available < 6 {
		available = 6
	}
	tableHeight := available / 2
	m.pollTable.SetHeight(tableHeight)
	m.pollTable.SetWidth(max(m.width-2, 1))
	m.photoInput.Width = max(m.width-4, 10)

	m.logViewport.Width = max(m.width-2, 1)
	m.logViewport.Height = max(available-tableHeight, 1)
	m.logViewport.SetContent(strings.Join(m.alertLog, "\n"))
	m.logViewport.GotoBottom()
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	border := func(p pane) lipgloss.Style {
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Width(max(m.width-2, 1))
		if m.focusedPane == p {
			style = style.BorderForeground(focusColor)
		}
		return style
	}

	sections := []string{m.renderHeader()}
	if m.status.LoggedIn {
		sections = append(sections, border(paneForm).Render(m.renderForm()))
	}
	sections = append(sections,
		TitleStyle.Render("Face Worth Polls"),
		border(panePolls).Render(m.pollTable.View()),
		border(paneAlerts).Render(m.logViewport.View()),
		m.renderHelp(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader() string {
	switch {
	case !m.status.Installed:
		return WarningStyle.Render(notInstalledText)
	case !m.status.LoggedIn:
		return WarningStyle.Render(notLoggedInText)
	}

	return HeaderStyle.Render(fmt.Sprintf("My TRON account: %s   Balance: %s TRX   Block: %d",
		m.account.Address.Short(), m.account.BalanceTRX().String(), m.account.Block.Number))
}

func (m *Model) renderForm() string {
	state := m.form.State()

	var content strings.Builder
	content.WriteString(m.photoInput.View())
	content.WriteString("\n")
	content.WriteString(LabelStyle.Render("Face hash: "))
	content.WriteString(ValueStyle.Render(state.FaceHash))
	content.WriteString("\n")
	content.WriteString(LabelStyle.Render("Commit blocks: "))
	content.WriteString(ValueStyle.Render(fmt.Sprint(state.BlocksBeforeReveal)))
	content.WriteString(LabelStyle.Render("   Reveal blocks: "))
	content.WriteString(ValueStyle.Render(fmt.Sprint(state.BlocksBeforeEnd)))
	content.WriteString("\n")

	switch {
	case state.Loading:
		content.WriteString(InfoStyle.Render("Creating FacePoll..."))
	case state.FacePhoto == "":
		content.WriteString(DisabledStyle.Render("[enter] Start FacePoll"))
	default:
		content.WriteString(ButtonStyle.Render("[enter] Start FacePoll"))
	}
	return content.String()
}

func (m *Model) renderHelp() string {
	var help string
	switch m.focusedPane {
	case paneForm:
		help = "Type a photo • Enter to start a poll • Tab to polls • Ctrl+C to quit"
	case panePolls:
		help = "↑↓ select • c commit • r reveal • Tab to alerts • Ctrl+C to quit"
		if m.busy {
			help = "Sending transaction... • Ctrl+C to quit"
		}
	default:
		help = "Alerts focused: ↑↓ scroll, PgUp/PgDn • Tab to switch • Ctrl+C to quit"
	}
	return InfoStyle.Render(help)
}

func (m *Model) addAlert(a poll.Alert) {
	line := a.Title
	if a.Text != "" {
		line += ": " + a.Text
	}

	if m.testMode {
		m.AddLogEntry(line)
		return
	}

	var style lipgloss.Style
	switch a.Level {
	case poll.AlertSuccess:
		style = SuccessStyle
	case poll.AlertError:
		style = ErrorStyle
	default:
		style = WarningStyle
	}
	m.AddLogEntry(style.Render(a.Title) + strings.TrimPrefix(line, a.Title))
}

// AddLogEntry appends an entry to the alert log.
func (m *Model) AddLogEntry(entry string) {
	m.alertLog = append(m.alertLog, entry)

	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return
	}

	m.logViewport.SetContent(strings.Join(m.alertLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Status returns the wallet status the model is rendering.
func (m *Model) Status() wallet.Status {
	return m.status
}

// Polls returns the polls in the table.
func (m *Model) Polls() []poll.ObservedPoll {
	return append([]poll.ObservedPoll(nil), m.polls...)
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *Model) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// IsTestMode returns whether the TUI is in test mode
func (m *Model) IsTestMode() bool {
	return m.testMode
}
