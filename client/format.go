package client

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	now    = time.Now
)

// PlainText strips the markup the dashboard keeps in descriptions.
func PlainText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(strict.Sanitize(s))), " ")
}

// Truncate shortens text to n characters, the last three being "...".
func Truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// FormatList renders a numbered summary of reports for a terminal or an
// assistant transcript.
func FormatList(list []Feedback) string {
	if len(list) == 0 {
		return "No feedback items found."
	}
	items := make([]string, 0, len(list))
	for i, f := range list {
		desc := PlainText(f.Description)
		if desc == "" {
			desc = "No comment"
		}
		items = append(items, fmt.Sprintf("%d. [#%s] %s\n   - URL: %s\n   - Console errors: %d\n   - Viewport: %dx%d\n   - %s\n   - Status: %s",
			i+1, f.ID, desc, f.PageURL, len(f.ConsoleErrors),
			f.BrowserInfo.Viewport.Width, f.BrowserInfo.Viewport.Height,
			RelativeTime(f.CreatedAt), f.Status))
	}
	return strings.Join(items, "\n\n")
}

const detailTime = "2006-01-02 15:04:05 MST"

// FormatDetail renders one report with its screenshot link, console errors
// and picked element.
func FormatDetail(f *Feedback) string {
	s := []string{
		"# Feedback #" + f.ID,
		"Status: " + f.Status,
		"URL: " + f.PageURL,
		"Created: " + f.CreatedAt.Format(detailTime),
	}
	if desc := PlainText(f.Description); desc != "" {
		s = append(s, "\n## User Comment\n"+desc)
	}
	if f.ScreenshotURL != "" {
		s = append(s, "\n## Screenshot\n![Screenshot]("+f.ScreenshotURL+")")
	}
	vp := f.BrowserInfo.Viewport
	s = append(s, fmt.Sprintf("\n## Viewport\n- Width: %dpx\n- Height: %dpx\n- User Agent: %s", vp.Width, vp.Height, f.BrowserInfo.UserAgent))

	if n := len(f.ConsoleErrors); n > 0 {
		s = append(s, fmt.Sprintf("\n## Console Errors (%d)", n))
		for i, ce := range f.ConsoleErrors {
			line := fmt.Sprintf("%d. [%s] %s", i+1, strings.ToUpper(ce.Type), ce.Message)
			if ce.Source != "" {
				line += fmt.Sprintf("\n   Source: %s:%d:%d", ce.Source, ce.Line, ce.Column)
			}
			s = append(s, line)
		}
	}

	if el := f.Element; el != nil {
		s = append(s, "\n## Selected Element", "- Tag: "+el.TagName)
		if el.ID != "" {
			s = append(s, "- ID: "+el.ID)
		}
		if el.ClassName != "" {
			s = append(s, "- Class: "+el.ClassName)
		}
		s = append(s, "- XPath: "+el.XPath)
		s = append(s, fmt.Sprintf("- Position: (%g, %g) %gx%g", el.Rect.X, el.Rect.Y, el.Rect.Width, el.Rect.Height))

		st := el.ComputedStyles
		styles := [][2]string{
			{"color", st.Color},
			{"backgroundColor", st.BackgroundColor},
			{"fontSize", st.FontSize},
			{"fontFamily", st.FontFamily},
			{"display", st.Display},
			{"position", st.Position},
		}
		header := false
		for _, kv := range styles {
			if kv[1] == "" {
				continue
			}
			if !header {
				s = append(s, "- Styles:")
				header = true
			}
			s = append(s, "  - "+kv[0]+": "+kv[1])
		}
	} else if f.ElementSelector != "" {
		s = append(s, "\n## Selected Element", "- Tag: "+f.ElementTagName, "- XPath: "+f.ElementSelector)
	}

	if f.Status == StatusResolved && f.ResolvedAt != nil {
		s = append(s, "\n## Resolution", "Resolved: "+f.ResolvedAt.Format(detailTime))
		if f.ResolutionNote != "" {
			s = append(s, "Note: "+f.ResolutionNote)
		}
	}
	return strings.Join(s, "\n")
}

// RelativeTime describes how long ago t was: "Just now", "5 minutes ago",
// "1 hour ago", "3 days ago".
func RelativeTime(t time.Time) string {
	d := now().Sub(t)
	mins := int(d / time.Minute)
	hours := int(d / time.Hour)
	days := int(d / (24 * time.Hour))
	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return plural(mins, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	default:
		return plural(days, "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
