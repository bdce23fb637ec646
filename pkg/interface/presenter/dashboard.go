package presenter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecentItems = 50

// Dashboard is a TUI dashboard for collection progress
type Dashboard struct {
	metrics     *entity.Metrics
	coverage    entity.Stats // items collected in this session
	recentItems []string
	bar         progress.Model
	width       int
	height      int
	startTime   time.Time
	mu          sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard
func NewDashboard() *Dashboard {
	return &Dashboard{
		metrics:   &entity.Metrics{},
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		startTime: time.Now(),
	}
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.bar.Width = max(msg.Width/2-30, 10)
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	header := d.renderHeader()
	footer := d.renderFooter()

	availableHeight := max(d.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	halfHeight := availableHeight / 2
	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	// Row 1: Captures (Left) | Fetches (Right)
	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderCaptureStats(leftWidth, halfHeight),
		d.renderFetchStats(rightWidth, halfHeight),
	)

	// Row 2: Coverage (Left) | Recent items (Right)
	remainingHeight := availableHeight - halfHeight
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderCoverage(leftWidth, remainingHeight),
		d.renderRecentItems(rightWidth, remainingHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, row1, row2, footer)
}

// OnMetricsUpdate implements application.MetricsObserver
func (d *Dashboard) OnMetricsUpdate(metrics *entity.Metrics) {
	d.mu.Lock()
	d.metrics = metrics
	d.mu.Unlock()
}

// AddItem implements application.MetricsObserver
func (d *Dashboard) AddItem(item entity.CanonicalItem) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.coverage.Add(&item)
	label := item.Name
	if item.Address != "" {
		label += ", " + item.Address
	}
	d.recentItems = append(d.recentItems, label)
	if len(d.recentItems) > maxRecentItems {
		d.recentItems = d.recentItems[len(d.recentItems)-maxRecentItems:]
	}
}

func panel(color string, width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(max(width-2, 0)). // Adjust for border
		Height(max(height-2, 0))
}

func formatElapsed(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	state := lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render("● collecting")
	if !d.metrics.Collecting {
		state = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("■ paused")
	}

	title := titleStyle.Render("🗺  Catalog Crawler")
	timeInfo := timeStyle.Render(fmt.Sprintf(" Running: %s | Time: %s | ", formatElapsed(time.Since(d.startTime)), time.Now().Format("15:04:05")))

	return title + timeInfo + state
}

func (d *Dashboard) renderCaptureStats(width, height int) string {
	m := d.metrics
	stats := []string{
		"📡 Captures",
		"",
		fmt.Sprintf("Processed:         %d", m.CapturesSeen),
		fmt.Sprintf("Skipped:           %d", m.CapturesSkipped),
		fmt.Sprintf("In flight:         %d", m.CapturesActive),
		fmt.Sprintf("Stored items:      %d", m.StoredItems),
		fmt.Sprintf("Store errors:      %d", m.StoreErrors),
	}
	if m.LastCapturedURL != "" {
		stats = append(stats, "", "Last: "+truncate(m.LastCapturedURL, max(width-12, 10)))
	}
	return panel("#874BFD", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderFetchStats(width, height int) string {
	m := d.metrics
	stats := []string{
		"🌐 Fetches",
		"",
		fmt.Sprintf("Searches:          %d (%d failed)", m.ListFetches, m.ListFailures),
		fmt.Sprintf("Details:           %d (%d failed)", m.DetailFetches, m.DetailFailures),
		fmt.Sprintf("Unsigned skips:    %d", m.SignSkips),
		fmt.Sprintf("Known places:      %d", m.DuplicateItems),
		fmt.Sprintf("Secret resets:     %d", m.SignatureResets),
	}

	if elapsed := time.Since(d.startTime).Seconds(); elapsed > 0 {
		stats = append(stats,
			"",
			fmt.Sprintf("Item Rate:         %.2f items/s", float64(m.ItemsCollected)/elapsed),
		)
	}
	if m.DetailFetches > 0 {
		stats = append(stats,
			fmt.Sprintf("Success Rate:      %.1f%%", float64(m.DetailFetches-m.DetailFailures)/float64(m.DetailFetches)*100),
		)
	}

	return panel("#FF6B6B", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderCoverage(width, height int) string {
	c := d.coverage
	lines := []string{
		fmt.Sprintf("☎  Contact coverage (%d items this session)", c.Total),
		"",
	}
	rows := []struct {
		label string
		n     int
	}{
		{"Phones  ", c.WithPhones},
		{"Mobile  ", c.WithMobilePhones},
		{"Email   ", c.WithEmails},
		{"Website ", c.WithSites},
		{"Telegram", c.WithTelegram},
		{"VK      ", c.WithVK},
		{"WhatsApp", c.WithWhatsApp},
	}
	for _, r := range rows {
		ratio := 0.0
		if c.Total > 0 {
			ratio = float64(r.n) / float64(c.Total)
		}
		lines = append(lines, fmt.Sprintf("%s %s %5d", r.label, d.bar.ViewAs(ratio), r.n))
	}
	return panel("#4ECDC4", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderRecentItems(width, height int) string {
	lines := []string{
		fmt.Sprintf("📍 Recent Items (Total: %d)", d.metrics.ItemsCollected),
		"",
	}

	if len(d.recentItems) == 0 {
		lines = append(lines, "No items collected yet...")
	} else {
		// Height - 2 (border) - 2 (padding) - 2 (title + empty line)
		maxShow := max(height-6, 0)
		start := max(len(d.recentItems)-maxShow, 0)
		for _, item := range d.recentItems[start:] {
			lines = append(lines, "  • "+truncate(item, max(width-10, 10)))
		}
	}

	return panel("#04B575", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to quit")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard and quits it when ctx is done
func (d *Dashboard) Run(ctx context.Context) error {
	p := tea.NewProgram(d, tea.WithAltScreen())
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()
	_, err := p.Run()
	return err
}
