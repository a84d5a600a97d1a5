package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Notification renders a single notification email body.
func Notification(v NotificationView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w,
			layoutOpen(v.AppName),
			`<h1 style="font-size:20px;margin:0 0 12px">`, templ.EscapeString(v.Title), `</h1>`,
			paragraph(v.Message),
			button(v.ActionURL, v.ActionLabel),
			layoutClose(v.AppName),
		)
	})
}

// Digest renders a digest email body.
func Digest(v DigestView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		parts := []string{
			layoutOpen(v.AppName),
			`<h1 style="font-size:20px;margin:0 0 4px">`,
			templ.EscapeString(fmt.Sprintf("You have %d new notifications", v.Total)),
			`</h1>`,
		}
		if v.Period != "" {
			parts = append(parts, `<p style="color:#6b7280;margin:0 0 16px">`, templ.EscapeString(v.Period), `</p>`)
		}
		if len(v.Categories) > 0 {
			parts = append(parts, `<table role="presentation" style="width:100%;margin:0 0 16px">`)
			for _, c := range v.Categories {
				parts = append(parts,
					`<tr><td>`, templ.EscapeString(c.Title), `</td>`,
					`<td style="text-align:right">`, fmt.Sprint(c.Count), `</td></tr>`,
				)
			}
			parts = append(parts, `</table>`)
		}
		for _, h := range v.Highlights {
			parts = append(parts,
				`<div style="border-top:1px solid #e5e7eb;padding:12px 0">`,
				`<strong>`, templ.EscapeString(h.Title), `</strong>`,
				paragraph(h.Message),
				button(h.ActionURL, "Open"),
				`</div>`,
			)
		}
		if v.More > 0 {
			parts = append(parts, paragraph(fmt.Sprintf("and %d more", v.More)))
		}
		parts = append(parts, layoutClose(v.AppName))
		return write(w, parts...)
	})
}

func layoutOpen(appName string) string {
	return `<!DOCTYPE html><html><head><meta charset="utf-8"><title>` +
		templ.EscapeString(appName) +
		`</title></head><body style="font-family:sans-serif;color:#111827;max-width:560px;margin:0 auto;padding:24px">`
}

func layoutClose(appName string) string {
	return `<p style="color:#9ca3af;font-size:12px;margin-top:24px">` +
		templ.EscapeString(appName) +
		`: you can change which emails you receive in your notification settings.</p></body></html>`
}

func paragraph(text string) string {
	if text == "" {
		return ""
	}
	return `<p style="margin:4px 0 12px">` + templ.EscapeString(text) + `</p>`
}

func button(href, label string) string {
	if href == "" {
		return ""
	}
	if label == "" {
		label = "View"
	}
	safe := templ.URL(href)
	return `<a href="` + templ.EscapeString(string(safe)) +
		`" style="display:inline-block;background:#2563eb;color:#fff;padding:8px 16px;border-radius:4px;text-decoration:none">` +
		templ.EscapeString(label) + `</a>`
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
