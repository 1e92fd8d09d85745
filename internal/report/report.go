package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/convo-recap/internal/types"
)

// DefaultTimeout bounds a single PDF render.
const DefaultTimeout = 60 * time.Second

// Metadata carries the run context shown in the report header.
type Metadata struct {
	ConversationID string
	AccountID      string
	GeneratedAt    time.Time
	TurnCount      int
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 40px; }
  h1 { font-size: 22px; border-bottom: 2px solid #2c3e50; padding-bottom: 8px; }
  h2 { font-size: 15px; color: #2c3e50; margin-top: 24px; }
  .meta { color: #666; font-size: 11px; }
  .sentiment { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 12px; background: #eee; }
  ul { margin: 6px 0; }
  li { margin: 3px 0; }
  p.narrative { line-height: 1.5; }
</style>
</head>
<body>
  <h1>Conversation Report</h1>
  <p class="meta">
    Conversation {{.Meta.ConversationID}} · Account {{.Meta.AccountID}} ·
    {{.Meta.TurnCount}} turns · Generated {{.Meta.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}}
  </p>

  <h2>Topic</h2>
  <p>{{.Summary.Topic}}</p>

  <h2>Sentiment</h2>
  <p><span class="sentiment">{{.Summary.Sentiment}}</span></p>

  <h2>Key Points</h2>
  {{if .Summary.KeyPoints}}<ul>{{range .Summary.KeyPoints}}<li>{{.}}</li>{{end}}</ul>{{else}}<p>None recorded.</p>{{end}}

  <h2>Action Items</h2>
  {{if .Summary.ActionItems}}<ul>{{range .Summary.ActionItems}}<li>{{.}}</li>{{end}}</ul>{{else}}<p>None recorded.</p>{{end}}

  <h2>Summary</h2>
  <p class="narrative">{{.Summary.Narrative}}</p>
</body>
</html>`))

// Renderer produces PDF reports via a headless browser.
// Requires Chrome/Chromium to be installed on the system.
type Renderer struct {
	timeout time.Duration
}

// NewRenderer creates a Renderer with the default timeout.
func NewRenderer() *Renderer {
	return &Renderer{timeout: DefaultTimeout}
}

// buildHTML executes the report template. Split out from Render so the
// document content is testable without a browser.
func buildHTML(summary *types.Summary, meta Metadata) (string, error) {
	if !summary.HasContent() {
		return "", &TemplateError{Message: "summary has no renderable content"}
	}

	var sb strings.Builder
	data := struct {
		Summary *types.Summary
		Meta    Metadata
	}{summary, meta}
	if err := reportTemplate.Execute(&sb, data); err != nil {
		return "", &TemplateError{Message: "failed to execute report template", Cause: err}
	}
	return sb.String(), nil
}

// Render builds the report document and prints it to PDF.
func (r *Renderer) Render(ctx context.Context, summary *types.Summary, meta Metadata) ([]byte, error) {
	html, err := buildHTML(summary, meta)
	if err != nil {
		return nil, err
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(html))),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			pdf, _, printErr = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, &RenderError{Message: "PDF rendering failed", Cause: err}
	}
	if len(pdf) == 0 {
		return nil, &RenderError{Message: "browser produced an empty PDF"}
	}
	return pdf, nil
}

// Describe returns a short label for logging.
func (m Metadata) Describe() string {
	return fmt.Sprintf("%s (%d turns)", m.ConversationID, m.TurnCount)
}
