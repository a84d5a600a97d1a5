package templates_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email/templates"
)

func TestNotification_Render(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		view     templates.NotificationView
		contains []string
		excludes []string
	}{
		{
			name:     "escapes text",
			view:     templates.NotificationView{AppName: "Acme", Title: "<b>hi</b>", Message: "a & b"},
			contains: []string{"&lt;b&gt;hi&lt;/b&gt;", "a &amp; b"},
			excludes: []string{"<b>hi</b>", "<a href"},
		},
		{
			name:     "action link",
			view:     templates.NotificationView{Title: "t", ActionURL: "https://example.com/x"},
			contains: []string{`href="https://example.com/x"`, ">View</a>"},
		},
		{
			name:     "unsafe link is neutralised",
			view:     templates.NotificationView{Title: "t", ActionURL: "javascript:alert(1)"},
			excludes: []string{"javascript:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			html, err := templates.Render(context.Background(), templates.Notification(tt.view))
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, html, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, html, s)
			}
		})
	}
}

func TestDigest_Render(t *testing.T) {
	t.Parallel()

	html, err := templates.Render(context.Background(), templates.Digest(templates.DigestView{
		AppName:    "Acme",
		Period:     "Mar 1 09:00 to Mar 1 10:00 UTC",
		Total:      4,
		Categories: []templates.CategoryCount{{Title: "Billing", Count: 4}},
		Highlights: []templates.DigestItem{{Title: "Paid", Message: "ok"}},
		More:       3,
	}))
	require.NoError(t, err)
	assert.Contains(t, html, "You have 4 new notifications")
	assert.Contains(t, html, "Mar 1 09:00 to Mar 1 10:00 UTC")
	assert.Contains(t, html, "Billing")
	assert.Contains(t, html, "Paid")
	assert.Contains(t, html, "and 3 more")
}
