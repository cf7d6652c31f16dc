// CLAUDE:SUMMARY Markdown digest of reports for coding assistants, and single-page PDF export of screenshots.
package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// descriptionMarkdown renders a sanitised HTML description as Markdown.
// Plain text passes through unchanged apart from entity decoding.
func descriptionMarkdown(html string) string {
	md, err := mdConverter.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}

// Report renders the user's matching reports as a Markdown digest meant to
// be pasted into a coding assistant. Status defaults to pending.
func (svc *Service) Report(ctx context.Context, userID string, opts ListOptions) (string, error) {
	if opts.Status == "" {
		opts.Status = StatusPending
	}
	list, err := svc.ListFeedback(ctx, userID, opts)
	if err != nil {
		return "", err
	}
	return renderReport(list), nil
}

func renderReport(list []*Feedback) string {
	if len(list) == 0 {
		return "# DevLens Feedback\n\nNo pending feedback."
	}

	lines := []string{"# DevLens Feedback\n"}
	for _, f := range list {
		desc := descriptionMarkdown(f.Description)
		project := f.ProjectID
		if f.Project != nil {
			project = f.Project.Name
		}

		lines = append(lines, fmt.Sprintf("## %s - %s\n", f.ID, truncateEllipsis(desc, 50)))
		lines = append(lines, "**Project:** "+project)
		lines = append(lines, "**Page:** "+f.PageURL)
		lines = append(lines, "**Date:** "+f.CreatedAt.Format(time.RFC3339))
		if f.ScreenshotURL != "" {
			lines = append(lines, "**Screenshot:** "+f.ScreenshotURL)
		}
		if f.ElementSelector != "" {
			lines = append(lines, "**Element:** `"+f.ElementSelector+"`")
		}

		if len(f.ConsoleErrors) > 0 {
			lines = append(lines, "\n**Console Errors:**")
			for _, ce := range f.ConsoleErrors {
				lines = append(lines, fmt.Sprintf("- [%s] %s", strings.ToUpper(ce.Type), ce.Message))
			}
		}

		lines = append(lines, fmt.Sprintf("\n**Description:**\n%s\n", desc))
		lines = append(lines, "---\n")
	}
	return strings.Join(lines, "\n")
}

// truncateEllipsis shortens s to n characters, the last three being "...".
func truncateEllipsis(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var pdfcpuOnce sync.Once

// ScreenshotPDF wraps a report's screenshot in a one-page PDF.
func (svc *Service) ScreenshotPDF(ctx context.Context, userID, feedbackID string) ([]byte, error) {
	_, data, err := svc.Screenshot(ctx, userID, feedbackID)
	if err != nil {
		return nil, err
	}
	return imagePDF(data)
}

func imagePDF(img []byte) ([]byte, error) {
	pdfcpuOnce.Do(api.DisableConfigDir)

	var out bytes.Buffer
	imp := pdfcpu.DefaultImportConfig()
	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, &out, []io.Reader{bytes.NewReader(img)}, imp, conf); err != nil {
		return nil, fmt.Errorf("dashboard: screenshot pdf: %w", err)
	}
	return out.Bytes(), nil
}
