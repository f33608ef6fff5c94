// Package report renders answers and history summaries for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/FranksOps/howto/internal/storage"
)

// Format selects how answers are written.
type Format string

const (
	// FormatText prints only the instruction of each answer.
	FormatText Format = "text"
	// FormatFull prints the whole answer text and its link.
	FormatFull Format = "full"
	// FormatJSON prints one JSON object per line.
	FormatJSON Format = "json"
	// FormatHTML is only meaningful for history reports.
	FormatHTML Format = "html"
)

// ParseFormat validates s. Empty selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatFull, FormatJSON, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

type jsonItem struct {
	Position    int    `json:"position"`
	Link        string `json:"link,omitempty"`
	FullText    string `json:"full_text,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WriteResult writes the position-th result of a search. Error results are
// only written in FormatJSON; the other formats leave them to the caller.
func WriteResult(w io.Writer, format Format, position int, res domain.Result) error {
	var err error
	switch format {
	case FormatJSON:
		item := jsonItem{Position: position}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.Link = res.Answer.Link
			item.FullText = res.Answer.FullText
			item.Instruction = res.Answer.Instruction
		}
		err = json.NewEncoder(w).Encode(item)
	case FormatFull:
		if res.Err != nil {
			return nil
		}
		body := res.Answer.FullText
		if body == "" {
			body = res.Answer.Instruction
		}
		_, err = fmt.Fprintf(w, "Answer from %s\n\n%s\n\n", res.Answer.Link, strings.TrimSpace(body))
	default:
		if res.Err != nil {
			return nil
		}
		_, err = fmt.Fprintln(w, strings.TrimSpace(res.Answer.Instruction))
	}
	if err != nil {
		return fmt.Errorf("report: writing result %d: %w", position, err)
	}
	return nil
}

// Summary aggregates the stored results of one or more searches.
type Summary struct {
	Queries   int
	Answers   int
	Errors    int
	Hosts     map[string]int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Records   []*storage.Record `json:",omitempty"`
}

// GenerateSummary processes records into a Summary. Records are kept in the
// given order for rendering.
func GenerateSummary(records []*storage.Record) Summary {
	s := Summary{
		Hosts:   make(map[string]int),
		Records: records,
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	queries := make(map[string]struct{})
	for _, r := range records {
		queries[r.Query] = struct{}{}
		if r.Error != "" {
			s.Errors++
		} else {
			s.Answers++
			if u, err := url.Parse(r.Link); err == nil && u.Host != "" {
				s.Hosts[u.Host]++
			}
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Queries = len(queries)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encoding summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable summary followed by one line per record.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `howto history
-------------
Time:      {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Queries:   {{.Queries}}
Answers:   {{.Answers}}
Errors:    {{.Errors}}

Hosts:
{{- range $host, $count := .Hosts}}
  {{$host}}: {{$count}}
{{- else}}
  None
{{- end}}
{{range .Records}}
[{{.CreatedAt.Format "2006-01-02 15:04"}}] {{.Query}} #{{.Position}}
{{- if .Error}}  error: {{.Error}}{{else}}  {{.Link}}
  {{.Instruction}}{{end}}
{{- end}}
`

	t, err := texttemplate.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: parsing text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: rendering text: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML history page to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>howto history</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; vertical-align: top; }
  th { background: #eaeaea; }
  pre { margin: 0; white-space: pre-wrap; }
</style>
</head>
<body>
  <h1>howto history</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}}</p>

  <div class="stat-card">
    <div>Queries</div>
    <div class="stat-val">{{.Queries}}</div>
  </div>
  <div class="stat-card">
    <div>Answers</div>
    <div class="stat-val">{{.Answers}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val" style="color: {{if gt .Errors 0}}red{{else}}green{{end}};">{{.Errors}}</div>
  </div>

  <h3>Answers</h3>
  <table>
    <tr><th>Query</th><th>#</th><th>Link</th><th>Instruction</th></tr>
    {{- range .Records}}
    <tr><td>{{.Query}}</td><td>{{.Position}}</td>
    {{- if .Error}}<td colspan="2">{{.Error}}</td>
    {{- else}}<td><a href="{{.Link}}">{{.Link}}</a></td><td><pre>{{.Instruction}}</pre></td>{{end}}</tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report: parsing html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: rendering html: %w", err)
	}

	return nil
}

// Write renders summary in format. FormatFull renders like FormatText.
func Write(w io.Writer, format Format, summary Summary) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, summary)
	case FormatHTML:
		return WriteHTML(w, summary)
	default:
		return WriteText(w, summary)
	}
}
