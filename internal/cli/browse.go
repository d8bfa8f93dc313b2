package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
	"github.com/matzehuels/gitlab-composer/pkg/store"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// browseCommand creates the browse command.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Explore the stored catalog in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(false)
			if err != nil {
				return err
			}
			st, err := c.openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			cat, err := st.Latest(ctx)
			if errors.Is(err, store.ErrNoCatalog) {
				printWarning("No catalog stored yet")
				printNextStep("Build one", appName+" resolve")
				return nil
			}
			if err != nil {
				return err
			}

			_, err = tea.NewProgram(NewCatalogModel(cat), tea.WithAltScreen()).Run()
			return err
		},
	}
}

// =============================================================================
// CatalogModel - Interactive catalog browser
// =============================================================================

// packageEntry is one package of the catalog with its versions newest first.
type packageEntry struct {
	Name     string
	Versions []composer.PackageVersion
}

// CatalogModel is the bubbletea model for browsing a catalog. The list view
// shows one row per package; enter opens the version list of a package.
type CatalogModel struct {
	Catalog  *repository.Catalog
	Packages []packageEntry
	Cursor   int
	Offset   int
	Height   int
	Open     *packageEntry
}

// NewCatalogModel indexes cat by package name.
func NewCatalogModel(cat *repository.Catalog) CatalogModel {
	byName := make(map[string]int)
	var entries []packageEntry
	for _, v := range cat.Versions {
		i, ok := byName[v.Name]
		if !ok {
			i = len(entries)
			byName[v.Name] = i
			entries = append(entries, packageEntry{Name: v.Name})
		}
		entries[i].Versions = append(entries[i].Versions, v)
	}
	for i := range entries {
		composer.SortPackageVersions(entries[i].Versions)
	}
	return CatalogModel{Catalog: cat, Packages: entries, Height: 15}
}

func (m CatalogModel) Init() tea.Cmd {
	return nil
}

func (m CatalogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc", "backspace", "left", "h":
			if m.Open == nil && msg.String() == "esc" {
				return m, tea.Quit
			}
			m.Open = nil
		case "up", "k":
			if m.Open == nil && m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Open == nil && m.Cursor < len(m.Packages)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			if len(m.Packages) > 0 {
				entry := m.Packages[m.Cursor]
				m.Open = &entry
			}
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m CatalogModel) View() string {
	if m.Open != nil {
		return m.versionsView(*m.Open)
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Catalog"))
	b.WriteString(" ")
	b.WriteString(listDimStyle.Render(m.summary()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ versions  q quit"))
	b.WriteString("\n\n")

	if len(m.Packages) == 0 {
		b.WriteString(StyleWarning.Render("No packages in this catalog"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Packages))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		p := m.Packages[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		stable, dev := 0, 0
		for _, v := range p.Versions {
			if v.IsDevelopment {
				dev++
			} else {
				stable++
			}
		}
		rows = append(rows, []string{cursor, p.Name, p.Versions[0].Version, fmt.Sprint(stable), fmt.Sprint(dev), p.Versions[0].Source.URL})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Latest", "Tags", "Dev", "Source").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			if col == 5 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Packages))))
	return b.String()
}

func (m CatalogModel) versionsView(p packageEntry) string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render(p.Name))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("← back  q quit"))
	b.WriteString("\n\n")

	for _, v := range p.Versions {
		style := listNormalStyle
		if v.IsDevelopment {
			style = StyleDev
		}
		released := "-"
		if t, err := time.Parse(time.RFC3339, v.Time); err == nil {
			released = formatRelativeTime(t)
		}
		line := fmt.Sprintf("  %-24s %-12s %s", style.Render(v.Version), listDimStyle.Render(shortID(v.Source.Reference)), listDimStyle.Render(released))
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(p.Versions) > 0 && p.Versions[0].Dist != nil {
		b.WriteString("\n")
		b.WriteString(listSelectedStyle.Render("dist "))
		b.WriteString(listDimStyle.Render(p.Versions[0].Dist.URL))
		b.WriteString("\n")
	}
	return b.String()
}

func (m CatalogModel) summary() string {
	parts := []string{
		fmt.Sprintf("%d packages", len(m.Packages)),
		fmt.Sprintf("%d versions", len(m.Catalog.Versions)),
	}
	if n := len(m.Catalog.Skipped()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	if !m.Catalog.FinishedAt.IsZero() {
		parts = append(parts, "built "+formatRelativeTime(m.Catalog.FinishedAt))
	}
	return strings.Join(parts, " · ")
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
