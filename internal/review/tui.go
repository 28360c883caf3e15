package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/qgenlab/qgen/internal/model"
)

// Lines per question item in the right pane (question + subtitle + blank separator).
const itemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	itemTitleStyle = lipgloss.NewStyle().
			Bold(true)

	itemSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

type reviewModel struct {
	title         string
	groups        model.QAGroups
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=levels, 1=questions
	levelCursor   int
	itemCursor    int
	width         int
	height        int
	ready         bool

	// Detail view state
	view           viewState
	detailItem     model.QAItem
	detailLevel    string
	detailViewport viewport.Model
	showSource     bool

	wantQuit bool
}

func newReviewModel(title string, groups model.QAGroups) reviewModel {
	return reviewModel{title: title, groups: groups}
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		if m.activePane == 0 {
			m.activePane = 1
			m.recalcContent()
			return m, nil
		}
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "s":
		if m.detailItem.SourceText != "" {
			m.showSource = !m.showSource
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *reviewModel) moveCursor(delta int) {
	if m.activePane == 0 {
		prev := m.levelCursor
		m.levelCursor = clamp(m.levelCursor+delta, 0, max(len(m.groups)-1, 0))
		if m.levelCursor != prev {
			m.itemCursor = 0
			m.rightViewport.SetYOffset(0)
		}
	} else {
		m.itemCursor = clamp(m.itemCursor+delta, 0, max(len(m.currentItems())-1, 0))
	}
}

func (m *reviewModel) ensureCursorVisible() {
	if m.activePane == 0 {
		vp := &m.leftViewport
		if m.levelCursor < vp.YOffset {
			vp.SetYOffset(m.levelCursor)
		} else if m.levelCursor >= vp.YOffset+vp.Height {
			vp.SetYOffset(m.levelCursor - vp.Height + 1)
		}
		return
	}

	vp := &m.rightViewport
	cursorTop := m.itemCursor * itemHeight
	cursorBottom := cursorTop + itemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m reviewModel) currentItems() []model.QAItem {
	if len(m.groups) == 0 {
		return nil
	}
	return m.groups[m.levelCursor].Items
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	items := m.currentItems()
	if len(items) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailItem = items[m.itemCursor]
	m.detailLevel = m.groups[m.levelCursor].Level
	m.showSource = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) recalcLayout() {
	// Left pane lists levels and stays narrow.
	leftWidth := clamp(m.width/4, 18, 32)
	// 2 border chars per pane + 1 gap between panes.
	rightWidth := max(m.width-leftWidth-5, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(leftWidth, paneHeight)
		m.rightViewport = viewport.New(rightWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = leftWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = rightWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.leftViewport.SetContent(renderLevels(m.groups, m.levelCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderItems(m.currentItems(), m.itemCursor, m.activePane == 1, m.rightViewport.Width))
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m reviewModel) viewList() string {
	leftWidth := m.leftViewport.Width
	rightWidth := m.rightViewport.Width

	leftHeader := fmt.Sprintf(" Levels (%d)", len(m.groups))
	rightHeader := " Questions"
	if len(m.groups) > 0 {
		rightHeader = fmt.Sprintf(" %s (%d)", m.groups[m.levelCursor].Level, len(m.currentItems()))
	}

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(leftWidth)
		rightBorder = inactiveBorderStyle.Width(rightWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(leftWidth)
		rightBorder = activeBorderStyle.Width(rightWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(leftWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(rightWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %s | %d questions    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		m.title, m.groups.Total())
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Question Details")

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailItem.SourceText != "" {
		statusText = " s source text  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	it := m.detailItem
	wrapWidth := max(m.width-22, 20)
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(indentWrapped(wordWrap(value, wrapWidth)))
		b.WriteByte('\n')
	}

	addField("Level", m.detailLevel)
	addField("Question", it.Question)
	b.WriteByte('\n')
	addField("Answer", it.Answer)

	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Rubric ") + "\n\n")
	switch {
	case it.Rubric == nil:
		b.WriteString(hintStyle.Render("  no rubric") + "\n")
	case len(it.Rubric.Levels) > 0:
		for _, band := range it.Rubric.Levels {
			addField(band.Level, band.Description)
		}
	default:
		b.WriteString(bodyStyle.Render(wordWrap(it.Rubric.Text, wrapWidth)) + "\n")
	}

	if it.SourceText != "" {
		b.WriteByte('\n')
		if m.showSource {
			b.WriteString(divider("── Source Text ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(it.SourceText, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press s to show the source text") + "\n")
		}
	}

	return b.String()
}

func renderLevels(groups model.QAGroups, cursor int, isActive bool) string {
	if len(groups) == 0 {
		return "  (no levels)"
	}

	var b strings.Builder
	for i, g := range groups {
		label := fmt.Sprintf("%s (%d)", g.Level, len(g.Items))
		switch {
		case i == cursor && isActive:
			b.WriteString("> " + selectedTitleStyle.Render(label))
		case i == cursor:
			b.WriteString("> " + itemTitleStyle.Render(label))
		default:
			b.WriteString("  " + itemSubtitleStyle.Render(label))
		}
		if i < len(groups)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderItems(items []model.QAItem, cursor int, isActive bool, width int) string {
	if len(items) == 0 {
		return "  (no questions)"
	}

	textWidth := max(width-4, 10)
	var b strings.Builder
	for i, it := range items {
		isSelected := isActive && i == cursor

		titleSt := itemTitleStyle
		subtitleSt := itemSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(truncate(fmt.Sprintf("%d. %s", i+1, it.Question), textWidth)))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(truncate(rubricSummary(it), textWidth)))
		b.WriteByte('\n')

		if i < len(items)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func rubricSummary(it model.QAItem) string {
	switch {
	case it.Rubric == nil:
		return "no rubric"
	case len(it.Rubric.Levels) > 0:
		return fmt.Sprintf("%d rubric bands", len(it.Rubric.Levels))
	default:
		return "free-text rubric"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// indentWrapped aligns continuation lines under the detail value column.
func indentWrapped(s string) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", 14))
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunReviewTUI launches the interactive split-pane review TUI.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunReviewTUI(title string, groups model.QAGroups) (bool, error) {
	m := newReviewModel(title, groups)

	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(reviewModel)
	return final.wantQuit, nil
}
