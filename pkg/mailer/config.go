package mailer

// Config holds mailer defaults, loaded with go-envconfig.
type Config struct {
	FallbackSubject string `env:"MAILER_FALLBACK_SUBJECT,default=Hello from us"`
	DefaultLayout   string `env:"MAILER_DEFAULT_LAYOUT,default=base.html"`
}
