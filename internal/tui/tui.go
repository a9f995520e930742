// Package tui is a terminal front end that plays the clinic against an
// in-process engine.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/rules"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
)

const (
	// refreshInterval is how often the view re-reads the engine.
	refreshInterval = 200 * time.Millisecond
	// recentLines is how many journal lines the activity panel shows.
	recentLines = 6
)

// Session is the part of the engine the console drives.
type Session interface {
	StartGame() bool
	PauseGame() bool
	ResumeGame() bool
	EndGame() bool
	SwitchStation(station clinic.Station) bool
	AcceptPatient(id string) bool
	CompleteDiagnosis(id string, result patient.MiniGameResult) bool
	CompletePharmacy(id string, result patient.MiniGameResult) bool
	CompleteAcupuncture(id string, result patient.MiniGameResult) bool
	ServePatient(id string) bool
	PurchaseUpgrade(kind clinic.UpgradeKind) bool
	QuoteUpgrade(kind clinic.UpgradeKind) rules.Quote
	Snapshot() clinic.GameState
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#0F766E")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	goodStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var stationOrder = []clinic.Station{
	clinic.StationOrder,
	clinic.StationDiagnosis,
	clinic.StationPharmacy,
	clinic.StationAcupuncture,
	clinic.StationServing,
}

type tickMsg time.Time

type model struct {
	session Session
	journal *events.EventLog
	offset  int
	recent  []string
	state   clinic.GameState
	score   float64
	cursor  int
	status  string
	width   int
}

// NewModel returns the root bubbletea model. score is the mini-game score
// reported when the player advances a patient. journal may be nil.
func NewModel(s Session, journal *events.EventLog, score float64) tea.Model {
	m := model{session: s, journal: journal, state: s.Snapshot(), score: score}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "s":
			m.report("start", m.session.StartGame())
			m.cursor = 0
		case "p":
			if m.state.Phase == clinic.PhasePaused {
				m.report("resume", m.session.ResumeGame())
			} else {
				m.report("pause", m.session.PauseGame())
			}
		case "e":
			m.report("end", m.session.EndGame())
		case "tab":
			m.report("switch station", m.session.SwitchStation(nextStation(m.state.CurrentStation)))
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.state.Patients)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.advanceSelected()
		case "1", "2", "3", "4":
			kind := clinic.UpgradeKinds[int(msg.String()[0]-'1')]
			m.report("buy "+string(kind), m.session.PurchaseUpgrade(kind))
		}
		m.refresh()
	}
	return m, nil
}

func (m *model) refresh() {
	m.state = m.session.Snapshot()
	if m.journal != nil {
		var batch []events.GameEvent
		batch, m.offset = m.journal.Since(m.offset)
		for _, e := range batch {
			m.recent = append(m.recent, journalLine(e))
		}
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
	}
	if m.cursor >= len(m.state.Patients) {
		m.cursor = max(len(m.state.Patients)-1, 0)
	}
}

func (m *model) report(action string, applied bool) {
	if applied {
		m.status = goodStyle.Render(action + ": ok")
	} else {
		m.status = badStyle.Render(action + ": rejected")
	}
}

// advanceSelected sends the one command that moves the selected patient to
// its next station.
func (m *model) advanceSelected() {
	if len(m.state.Patients) == 0 {
		m.report("treat", false)
		return
	}
	p := m.state.Patients[m.cursor]
	result := patient.MiniGameResult{Success: true, Score: m.score}
	switch p.Status {
	case patient.StatusWaiting:
		m.report("accept "+p.Name, m.session.AcceptPatient(p.ID))
	case patient.StatusDiagnosing:
		m.report("diagnose "+p.Name, m.session.CompleteDiagnosis(p.ID, result))
	case patient.StatusPharmacy:
		m.report("dispense for "+p.Name, m.session.CompletePharmacy(p.ID, result))
	case patient.StatusAcupuncture:
		m.report("needle "+p.Name, m.session.CompleteAcupuncture(p.ID, result))
	case patient.StatusServing:
		m.report("serve "+p.Name, m.session.ServePatient(p.ID))
	default:
		m.report("treat "+p.Name, false)
	}
}

func journalLine(e events.GameEvent) string {
	line := e.Timestamp.Format("15:04:05") + " " + strings.ToLower(strings.ReplaceAll(string(e.Type), "_", " "))
	if e.TargetID != "" {
		line += " " + e.TargetID
	}
	return line
}

func nextStation(cur clinic.Station) clinic.Station {
	for i, s := range stationOrder {
		if s == cur {
			return stationOrder[(i+1)%len(stationOrder)]
		}
	}
	return clinic.StationOrder
}

func (m model) View() string {
	s := m.state
	header := titleStyle.Render("CYBER CLINIC") + " " + dimStyle.Render(string(s.Phase))

	var body string
	switch s.Phase {
	case clinic.PhaseMenu:
		body = "\n  Press s to open the clinic.\n"
	case clinic.PhaseGameOver:
		body = fmt.Sprintf("\n  The clinic closed on day %d at level %d with %s coins.\n  Press s to play again.\n",
			s.Day, s.Level, humanize.Comma(int64(s.Coins)))
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			panelStyle.Render(m.renderPatients()),
			panelStyle.Render(m.renderStats()),
			panelStyle.Render(m.renderUpgrades()),
		)
	}

	if len(m.recent) > 0 {
		body = lipgloss.JoinVertical(lipgloss.Left, body, dimStyle.Render(strings.Join(m.recent, "\n")))
	}

	help := helpStyle.Render("s start  p pause/resume  e end  tab station  j/k select  enter treat  1-4 upgrade  q quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.status, help) + "\n"
}

func (m model) renderPatients() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("PATIENTS") + "\n")
	if len(m.state.Patients) == 0 {
		b.WriteString(dimStyle.Render("(no one waiting)"))
		return b.String()
	}
	for i, p := range m.state.Patients {
		condition := "?"
		if p.Diagnosis != nil {
			condition = p.Diagnosis.Name
		}
		line := fmt.Sprintf("%-12s %-11s %3.0f%%  %s", p.Name, p.Status, p.Patience, condition)
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case p.Status.IsTerminal():
			line = dimStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m model) renderStats() string {
	s := m.state
	return titleStyle.Render("CLINIC") + "\n" +
		fmt.Sprintf("Station:    %s\n", s.CurrentStation) +
		fmt.Sprintf("Day:        %d\n", s.Day) +
		fmt.Sprintf("Level:      %d (%d/%d xp)\n", s.Level, s.Experience, s.ExpToNextLevel) +
		fmt.Sprintf("Coins:      %s\n", humanize.Comma(int64(s.Coins))) +
		fmt.Sprintf("Reputation: %d\n", s.Reputation) +
		fmt.Sprintf("Served:     %d\n", s.CompletedOrders) +
		fmt.Sprintf("Failed:     %d\n", s.FailedOrders) +
		fmt.Sprintf("Combo:      %d\n", s.Statistics.CurrentCombo)
}

func (m model) renderUpgrades() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("UPGRADES") + "\n")
	for i, k := range clinic.UpgradeKinds {
		q := m.session.QuoteUpgrade(k)
		price := humanize.Comma(int64(q.Cost))
		switch {
		case q.Maxed:
			price = "max"
		case !q.Affordable:
			price = dimStyle.Render(price)
		}
		fmt.Fprintf(&b, "%d %-15s L%d  %s\n", i+1, k, q.Level, price)
	}
	return b.String()
}

// Run blocks until the player quits.
func Run(s Session, journal *events.EventLog, score float64) error {
	p := tea.NewProgram(NewModel(s, journal, score), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
