package explorer

import (
	"fmt"
	"strings"
)

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder

	switch m.state {
	case ViewServers:
		m.renderServers(&b)
	case ViewBrowsing:
		m.renderBrowsing(&b)
	case ViewTags:
		m.renderTags(&b)
	case ViewValues:
		m.renderValues(&b)
	case ViewWrite:
		m.renderWrite(&b)
	}

	if m.errMsg != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.errMsg))
	} else if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}

	return b.String()
}

func (m Model) renderServers(b *strings.Builder) {
	b.WriteString(titleStyle.Render("OPC DA Servers") + "\n")

	if len(m.servers) == 0 {
		b.WriteString(itemStyle.Render("no servers found") + "\n")
	}
	for i, s := range m.servers {
		if i == m.serverCursor {
			b.WriteString(cursorStyle.Render("> "+s) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+s) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("enter browse · r reload · q quit"))
}

func (m Model) renderBrowsing(b *strings.Builder) {
	b.WriteString(titleStyle.Render("Browsing "+m.server) + "\n")

	count := 0
	if m.progress != nil {
		count = m.progress.Count()
	}
	fmt.Fprintf(b, "%s discovered %d tags\n", m.spinner.View(), count)

	b.WriteString(helpStyle.Render("q quit"))
}

func (m Model) renderTags(b *strings.Builder) {
	title := fmt.Sprintf("%s · %d tags", m.server, len(m.tags))
	if m.partial {
		title += " (partial)"
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	if m.searching || m.filter != "" {
		b.WriteString("filter: " + m.search.View() + "\n")
	}

	visible := m.visibleTags()
	if len(visible) == 0 {
		b.WriteString(itemStyle.Render("no tags match") + "\n")
	}

	start, end := window(m.tagCursor, len(visible), m.pageSize())
	for i := start; i < end; i++ {
		tag := visible[i]
		mark := "[ ]"
		if m.selected[tag] {
			mark = selectedStyle.Render("[x]")
		}
		line := fmt.Sprintf("%s %s", mark, tag)
		if i == m.tagCursor {
			b.WriteString(cursorStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString(helpStyle.Render("space select · a all · n none · / filter · enter read · esc back · q quit"))
}

func (m Model) renderValues(b *strings.Builder) {
	b.WriteString(titleStyle.Render(m.server+" · live values") + "\n")

	for i, v := range m.values {
		quality := v.Quality
		switch {
		case strings.HasPrefix(quality, "Good"):
			quality = goodStyle.Render(quality)
		case strings.HasPrefix(quality, "Bad"):
			quality = badStyle.Render(quality)
		}
		line := fmt.Sprintf("%-40s %-20s %s  %s", v.TagID, v.Value, quality, v.Timestamp)
		if i == m.valueCursor {
			b.WriteString(cursorStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString(helpStyle.Render("w write · esc back · q quit"))
}

func (m Model) renderWrite(b *strings.Builder) {
	b.WriteString(titleStyle.Render("Write "+m.writeTag) + "\n")
	b.WriteString(m.write.View() + "\n")
	b.WriteString(helpStyle.Render("enter submit · esc cancel"))
}

// pageSize returns how many list rows fit the current terminal.
func (m Model) pageSize() int {
	if m.height <= 0 {
		return 20
	}
	n := m.height - 6
	if n < 5 {
		n = 5
	}
	return n
}

// window clamps a scrolling window of size onto [0, total) around cursor.
func window(cursor, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}
