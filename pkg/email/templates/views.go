package templates

// NotificationView is the data rendered into a single notification email.
type NotificationView struct {
	AppName     string
	Title       string
	Message     string
	ActionURL   string
	ActionLabel string
}

// DigestView is the data rendered into a digest email.
type DigestView struct {
	AppName    string
	Period     string
	Total      int
	Categories []CategoryCount
	Highlights []DigestItem
	// More counts notifications that did not make it into Highlights.
	More int
}

// CategoryCount is one row of the per-category summary.
type CategoryCount struct {
	Title string
	Count int
}

// DigestItem is one highlighted notification.
type DigestItem struct {
	Title     string
	Message   string
	ActionURL string
}
