package push

import "time"

// Config holds push provider settings. A provider whose credentials are
// empty is not configured and subscriptions using it fail permanently.
type Config struct {
	VAPIDPublicKey  string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string        `env:"VAPID_SUBSCRIBER" envDefault:"mailto:support@example.com"`
	TTL             time.Duration `env:"PUSH_TTL" envDefault:"24h"`

	FirebaseProjectID         string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile   string `env:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseCredentialsBase64 string `env:"FIREBASE_CREDENTIALS_BASE64"`
	AndroidChannelID          string `env:"FCM_ANDROID_CHANNEL_ID" envDefault:"notifications"`
}

// WebPushEnabled reports whether VAPID keys are configured.
func (c Config) WebPushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// FCMEnabled reports whether Firebase credentials are configured.
func (c Config) FCMEnabled() bool {
	return c.FirebaseCredentialsFile != "" || c.FirebaseCredentialsBase64 != ""
}
