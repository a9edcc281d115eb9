package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"moodscan/beep"
	"moodscan/log"
	"moodscan/session"
)

type tickMsg time.Time

type tuiModel struct {
	ctx           context.Context
	a             analyzer
	modality      session.Modality
	state         session.State
	busy          bool
	frame         int
	level         float64
	startedAt     time.Time
	elapsed       time.Duration
	width, height int

	features   session.AudioFeatures
	transcript string
	emotions   []session.EmotionScore
	face       session.FaceFeatures
	haveFace   bool
	notice     error
	result     *session.Result
	err        error
	deviceLine string
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	primaryText = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
)

// Share colours arrive as tailwind classes; map them onto the 256 palette.
var shareColors = map[string]lipgloss.Color{
	"bg-yellow-500": "220",
	"bg-blue-500":   "33",
	"bg-red-500":    "196",
	"bg-purple-500": "135",
	"bg-green-500":  "42",
	"bg-orange-500": "208",
	"bg-gray-500":   "245",
}

// Pulse palette, centre to rim. Index 0 is empty.
var (
	pulseColorsLive = []string{"", "231", "225", "219", "213", "177", "141", "105", "61", "237"}
	pulseColorsIdle = []string{"", "250", "247", "244", "241", "239", "238", "237", "236", "235"}
	pulseLive       []lipgloss.Style
	pulseIdle       []lipgloss.Style
	pulseLiveBg     [][]lipgloss.Style
	pulseIdleBg     [][]lipgloss.Style
)

func init() {
	pulseLive, pulseLiveBg = buildPulseStyles(pulseColorsLive)
	pulseIdle, pulseIdleBg = buildPulseStyles(pulseColorsIdle)
}

func buildPulseStyles(colors []string) ([]lipgloss.Style, [][]lipgloss.Style) {
	fg := make([]lipgloss.Style, len(colors))
	bg := make([][]lipgloss.Style, len(colors))
	for i, c := range colors {
		bg[i] = make([]lipgloss.Style, len(colors))
		if c == "" {
			continue
		}
		fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		for j, b := range colors {
			if b != "" {
				bg[i][j] = fg[i].Background(lipgloss.Color(b))
			}
		}
	}
	return fg, bg
}

func newTUIModel(ctx context.Context, a analyzer, deviceLine string) tuiModel {
	return tuiModel{ctx: ctx, a: a, modality: a.Modality(), state: a.State(), deviceLine: deviceLine}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) startCmd() tea.Cmd {
	a, ctx := m.a, m.ctx
	return func() tea.Msg {
		return startedMsg{Err: a.Start(ctx)}
	}
}

func (m tuiModel) stopCmd() tea.Cmd {
	a, ctx := m.a, m.ctx
	return func() tea.Msg {
		res, err := a.Stop(ctx)
		return resultMsg{Result: res, Err: err}
	}
}

func (m tuiModel) permissionCmd() tea.Cmd {
	a, ctx := m.a, m.ctx
	return func() tea.Msg {
		if a.RequestPermission(ctx) {
			return startedMsg{}
		}
		return startedMsg{Err: a.Err()}
	}
}

func (m tuiModel) analyzing() bool { return m.state == session.Recording }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			m.notice = nil
		case " ", "enter":
			if m.busy {
				return m, nil
			}
			m.busy = true
			if m.analyzing() {
				return m, m.stopCmd()
			}
			m.result, m.err, m.notice = nil, nil, nil
			return m, m.startCmd()
		case "r":
			if m.state == session.PermissionDenied && !m.busy {
				m.busy = true
				m.err = nil
				return m, m.permissionCmd()
			}
		}

	case tickMsg:
		m.frame++
		if m.analyzing() {
			m.elapsed = time.Since(m.startedAt)
		}
		return m, tuiTick()

	case stateMsg:
		if msg.State == session.Recording && m.state != session.Recording {
			m.startedAt = time.Now()
			m.elapsed = 0
			m.transcript = ""
			m.emotions = nil
			m.haveFace = false
			m.features = session.AudioFeatures{}
			beep.Play(beep.Start)
		}
		m.state = msg.State

	case startedMsg:
		m.busy = false
		if msg.Err != nil {
			m.err = msg.Err
			log.Errorf("start %s: %v", m.modality, msg.Err)
			beep.Play(beep.Error)
		}

	case resultMsg:
		m.busy = false
		m.result = msg.Result
		switch {
		case msg.Err != nil:
			m.err = msg.Err
			log.Errorf("stop %s: %v", m.modality, msg.Err)
			beep.Play(beep.Error)
		case msg.Result != nil:
			beep.Play(beep.End)
		}

	case featuresMsg:
		m.features = session.AudioFeatures(msg)
		m.level = m.level*0.6 + msg.Volume*0.4

	case transcriptMsg:
		m.transcript = string(msg)

	case emotionsMsg:
		m.emotions = msg
		top := 0.0
		if len(msg) > 0 {
			top = msg[0].Confidence
		}
		m.level = m.level*0.6 + top*0.4

	case faceMsg:
		m.face = session.FaceFeatures(msg)
		m.haveFace = true

	case noticeMsg:
		m.notice = msg.Err

	case noticeClearedMsg:
		m.notice = nil
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const pulseWidth = 37
	level := m.level
	if !m.analyzing() {
		level = 0
	}
	left := renderPulse(m.frame, level, m.analyzing())

	var info []string
	switch {
	case m.analyzing():
		info = append(info, recStyle.Render(fmt.Sprintf("● %s %.1fs", strings.ToUpper(string(m.modality)), m.elapsed.Seconds())))
	case m.busy || m.state == session.Finalizing || m.state == session.RequestingPermission:
		info = append(info, warnStyle.Render("◌ "+m.state.String()))
	case m.state == session.PermissionDenied:
		info = append(info, errStyle.Render("✕ permission denied"))
	default:
		info = append(info, dimStyle.Render("○ "+m.state.String()))
	}
	if m.notice != nil {
		info = append(info, warnStyle.Render("  ⚠ "+m.notice.Error()))
	}
	if m.deviceLine != "" {
		info = append(info, dimStyle.Render(m.deviceLine))
	}
	info = append(info, "")
	info = append(info, m.helpLine())
	info = append(info, helpStyle.Render("moodscan "+version))
	left += strings.Join(info, "\n")

	rightWidth := max(m.width-pulseWidth-1, 20)
	wrap := max(rightWidth-2, 10)

	var right string
	switch {
	case m.err != nil:
		right = m.renderError(wrap)
	case m.result != nil && !m.analyzing():
		right = renderResult(m.result, wrap)
	default:
		right = m.renderLive(wrap)
	}

	leftPanel := lipgloss.NewStyle().Width(pulseWidth - 1).Height(m.height).Render(left)
	rightPanel := lipgloss.NewStyle().Width(rightWidth).Height(m.height).PaddingLeft(1).Render(right)
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) helpLine() string {
	action := " start"
	if m.analyzing() {
		action = " stop"
	}
	line := keyStyle.Render("space") + helpStyle.Render(action) + "  " + keyStyle.Render("q") + helpStyle.Render(" quit")
	if m.state == session.PermissionDenied {
		line += "  " + keyStyle.Render("r") + helpStyle.Render(" retry")
	}
	return line
}

func (m tuiModel) renderError(wrap int) string {
	var b strings.Builder
	b.WriteString(errStyle.Render("Error") + "\n\n")
	for _, line := range wrapText(m.err.Error(), wrap) {
		b.WriteString(errStyle.Render(line) + "\n")
	}
	if session.IsKind(m.err, session.KindPermission) {
		b.WriteString("\n" + dimStyle.Render("Grant access and press r to retry") + "\n")
	}
	return b.String()
}

func (m tuiModel) renderLive(wrap int) string {
	var b strings.Builder
	switch m.modality {
	case session.Voice:
		f := m.features
		b.WriteString(titleStyle.Render("Live audio") + "\n\n")
		fmt.Fprintf(&b, "pitch   %6.0f Hz\n", f.Pitch)
		fmt.Fprintf(&b, "volume  %6.2f\n", f.Volume)
		fmt.Fprintf(&b, "energy  %6.3f\n", f.Energy)
		fmt.Fprintf(&b, "rate    %6.1f /min\n\n", f.SpeakingRate)
		b.WriteString(titleStyle.Render("Transcript") + "\n\n")
		if m.transcript == "" {
			b.WriteString(dimStyle.Render("Nothing heard yet") + "\n")
		}
		for _, line := range wrapText(m.transcript, wrap) {
			if line != "" {
				b.WriteString(textStyle.Render(line) + "\n")
			}
		}
	case session.Face:
		b.WriteString(titleStyle.Render("Live expression") + "\n\n")
		if len(m.emotions) == 0 {
			b.WriteString(dimStyle.Render("No face in view") + "\n")
		}
		for _, e := range m.emotions {
			fmt.Fprintf(&b, "%-10s %s %3.0f%%\n", e.Emotion, bar(e.Confidence*100, 20, "245"), e.Confidence*100)
		}
		if m.haveFace {
			f := m.face
			b.WriteString("\n" + titleStyle.Render("Geometry") + "\n\n")
			fmt.Fprintf(&b, "symmetry %5.2f\n", f.SymmetryScore)
			fmt.Fprintf(&b, "eyes     %5.1f px\n", f.EyeOpenness)
			fmt.Fprintf(&b, "mouth    %5.1f px\n", f.MouthOpenness)
			if !f.FaceDetected {
				b.WriteString(dimStyle.Render("(last seen)") + "\n")
			}
		}
	}
	return b.String()
}

func renderResult(res *session.Result, wrap int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Result") + "  " + primaryText.Render(res.PrimaryEmotion) +
		dimStyle.Render(fmt.Sprintf("  confidence %.0f%%", res.Confidence*100)) + "\n\n")

	for _, s := range res.Emotions {
		fmt.Fprintf(&b, "%-12s %s %3d%%\n", s.Name, bar(float64(s.Value), 20, shareColors[s.Color]), s.Value)
	}

	if len(res.Insights) > 0 {
		b.WriteString("\n" + titleStyle.Render("Insights") + "\n\n")
		for _, in := range res.Insights {
			for i, line := range wrapText(in, wrap-2) {
				prefix := "  "
				if i == 0 {
					prefix = "• "
				}
				b.WriteString(prefix + line + "\n")
			}
		}
	}

	if res.Transcript != "" {
		b.WriteString("\n" + titleStyle.Render("Transcript") + "\n\n")
		for _, line := range wrapText(strings.TrimSpace(res.Transcript), wrap) {
			b.WriteString(textStyle.Render(line) + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%s · %s", res.Modality, res.Duration.Round(100*time.Millisecond))) + "\n")
	return b.String()
}

// bar renders pct of width cells.
func bar(pct float64, width int, color lipgloss.Color) string {
	if color == "" {
		color = "245"
	}
	n := int(math.Round(pct / 100 * float64(width)))
	n = min(max(n, 0), width)
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", n)) +
		dimStyle.Render(strings.Repeat("░", width-n))
}

// renderPulse draws concentric rings in half-block pixels. Ring radii swell
// with level while a session is live.
func renderPulse(frame int, level float64, live bool) string {
	const cols = 36
	const rows = 14
	const pixH = rows * 2

	styles, bgStyles := pulseIdle, pulseIdleBg
	speed, swell := 0.06, 0.0
	if live {
		styles, bgStyles = pulseLive, pulseLiveBg
		speed, swell = 0.12, level*4
	}
	rings := len(styles) - 1
	wobble := math.Sin(float64(frame)*speed) * 0.4

	cx, cy := float64(cols)/2, float64(pixH)/2
	pixel := func(x, y int) int {
		dist := math.Hypot(float64(x)-cx, float64(y)-cy)
		for r := 1; r <= rings; r++ {
			radius := float64(r)*1.3 + wobble + swell*float64(rings-r)/float64(rings)
			if dist < min(radius, 13) {
				return r
			}
		}
		return 0
	}

	var out strings.Builder
	for row := range rows {
		for x := range cols {
			top, bot := pixel(x, row*2), pixel(x, row*2+1)
			switch {
			case top == 0 && bot == 0:
				out.WriteString(" ")
			case top == bot:
				out.WriteString(styles[top].Render("█"))
			case bot == 0:
				out.WriteString(styles[top].Render("▀"))
			case top == 0:
				out.WriteString(styles[bot].Render("▄"))
			default:
				out.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		out.WriteString("\n")
	}
	return out.String()
}

// wrapText breaks text on spaces into lines of at most width runes.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	rs := []rune(text)
	for len(rs) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if rs[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(rs[:splitAt]))
		rs = []rune(strings.TrimLeft(string(rs[splitAt:]), " "))
	}
	if len(rs) > 0 {
		lines = append(lines, string(rs))
	}
	return lines
}
