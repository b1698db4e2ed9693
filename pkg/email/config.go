package email

// Config holds email service configuration.
// The token is optional so development deployments can run without Postmark;
// NewSender falls back to a DevSender when it is empty.
type Config struct {
	PostmarkServerToken string `env:"POSTMARK_SERVER_TOKEN"`
	SenderEmail         string `env:"SENDER_EMAIL" envDefault:"billing@paygate.local"`
	SupportEmail        string `env:"SUPPORT_EMAIL" envDefault:"support@paygate.local"`
	DevOutputDir        string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// Enabled reports whether a Postmark server token is present. Sending only
// needs the server API, so no account token is read.
func (c Config) Enabled() bool {
	return c.PostmarkServerToken != ""
}
