// Package html renders the seal inspection pages.
package html

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/evidenceledger/eseal/internal/errl"
)

// Extension of the template files.
const Extension = ".hbs"

// Options configures a Renderer.
type Options struct {
	// Views holds the templates in Dir.
	Views  fs.FS
	Dir    string
	// Reload reads the templates from Dir on disk instead of Views, and
	// reloads them on every render.
	Reload bool
	// Funcs are added to the template functions, replacing built-ins of the
	// same name.
	Funcs  map[string]any
}

// Renderer executes page templates into fiber responses.
type Renderer struct {
	engine *html.Engine
}

// New loads the templates described by opts.
func New(opts Options) (*Renderer, error) {
	var engine *html.Engine
	if opts.Reload {
		engine = html.NewFileSystem(http.Dir(opts.Dir), Extension)
		engine.Reload(true)
	} else {
		views, err := fs.Sub(opts.Views, opts.Dir)
		if err != nil {
			return nil, errl.Error(err)
		}
		engine = html.NewFileSystem(http.FS(views), Extension)
	}

	for name, fn := range Funcs() {
		engine.AddFunc(name, fn)
	}
	for name, fn := range opts.Funcs {
		engine.AddFunc(name, fn)
	}

	if err := engine.Load(); err != nil {
		return nil, errl.Errorf("failed to load templates from %s: %w", opts.Dir, err)
	}
	return &Renderer{engine: engine}, nil
}

// Funcs returns the built-in template functions:
//
//	date        formats a time in UTC, empty for the zero time
//	bytes       formats a byte count with a binary unit
//	statusClass maps a validity flag to the "ok" or "bad" CSS class
func Funcs() map[string]any {
	return map[string]any{
		"date":        formatDate,
		"bytes":       formatBytes,
		"statusClass": statusClass,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMG"[exp])
}

func statusClass(valid bool) string {
	if valid {
		return "ok"
	}
	return "bad"
}

var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none';"},
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// Render executes the page template name with data and sends it with the
// security headers set.
func (r *Renderer) Render(c *fiber.Ctx, name string, data fiber.Map) error {
	var out bytes.Buffer
	if err := r.engine.Render(&out, name, data); err != nil {
		slog.Error("Failed to render page", "template", name, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "rendering response")
	}

	for _, h := range securityHeaders {
		c.Set(h[0], h[1])
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(out.Bytes())
}
