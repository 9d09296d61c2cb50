package dispatch

import (
	"bytes"
	"html/template"
	"time"
)

// PageData is the information available to a PageRenderer when
// synthesizing the human-visible rate-limit page.
type PageData struct {
	Limit      int
	Period     int
	RetryAfter int64
	ResetTime  time.Time
}

// PageRenderer produces the HTML body for a denied request whose Accept
// header prefers text/html. The gateway is runnable standalone with
// DefaultPageRenderer; production deployments are expected to supply
// their own renderer backed by a real template (§1, Non-goals).
type PageRenderer interface {
	Render(PageData) ([]byte, error)
}

var defaultPageTemplate = template.Must(template.New("rate-limit").Parse(`<!DOCTYPE html>
<html>
<head><title>Rate limit exceeded</title></head>
<body>
<h1>Rate limit exceeded</h1>
<p>This client is limited to {{.Limit}} requests every {{.Period}}s.</p>
<p>Try again in {{.RetryAfter}}s (at {{.ResetTime.Format "15:04:05 MST"}}).</p>
</body>
</html>
`))

// DefaultPageRenderer renders the minimal built-in HTML page via
// html/template, escaping all fields automatically.
type DefaultPageRenderer struct{}

// Render implements PageRenderer.
func (DefaultPageRenderer) Render(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := defaultPageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
