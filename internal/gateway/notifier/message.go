package notifier

import (
	"strings"
	"time"

	textutil "trendpilot/internal/pkg/text"
)

const maxMessageLen = 3800

// Section 是通知中的一个段落。
type Section struct {
	Title string
	Lines []string
}

// Message 是统一格式的推送：标题 + 代码块段落 + 时间。
type Message struct {
	Icon      string
	Title     string
	Sections  []Section
	Timestamp time.Time
}

// Markdown 渲染消息，超长时裁剪。
func (m Message) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	var blocks []string
	for _, sec := range m.Sections {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		var sb strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			sb.WriteString(escapeFence(title) + "\n")
		}
		for _, line := range lines {
			sb.WriteString("- " + escapeFence(line) + "\n")
		}
		blocks = append(blocks, sb.String())
	}
	if len(blocks) > 0 {
		b.WriteString("```\n" + strings.Join(blocks, "\n") + "```\n\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return textutil.Truncate(strings.TrimSpace(b.String()), maxMessageLen)
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
