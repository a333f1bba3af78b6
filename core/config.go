package core

// Default thresholds.
const (
	DefaultMinInstallDays = 7
	DefaultMinLaunches    = 10
)

// Built-in dialog labels.
const (
	DefaultTitle          = "Rate this app"
	DefaultMessage        = "If you enjoy using this app, would you mind taking a moment to rate it? Thanks for your support!"
	DefaultRateButton     = "Rate now"
	DefaultLaterButton    = "Later"
	DefaultNoThanksButton = "No, thanks"
)

// PromptConfig holds the thresholds and optional dialog label overrides.
// Nil label fields fall back to the built-in defaults.
type PromptConfig struct {
	MinInstallDays int     `json:"min_install_days" yaml:"min_install_days"`
	MinLaunches    int     `json:"min_launches" yaml:"min_launches"`
	Title          *string `json:"title,omitempty" yaml:"title,omitempty"`
	Message        *string `json:"message,omitempty" yaml:"message,omitempty"`
	RateButton     *string `json:"rate_button,omitempty" yaml:"rate_button,omitempty"`
	LaterButton    *string `json:"later_button,omitempty" yaml:"later_button,omitempty"`
	NoThanksButton *string `json:"no_thanks_button,omitempty" yaml:"no_thanks_button,omitempty"`
}

// DefaultPromptConfig returns 7 days / 10 launches with default labels.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{MinInstallDays: DefaultMinInstallDays, MinLaunches: DefaultMinLaunches}
}

// DialogText is the resolved set of strings shown by a dialog surface.
type DialogText struct {
	Title          string `json:"title"`
	Message        string `json:"message"`
	RateButton     string `json:"rate_button"`
	LaterButton    string `json:"later_button"`
	NoThanksButton string `json:"no_thanks_button"`
}

// Text resolves the configured labels against the defaults.
func (c PromptConfig) Text() DialogText {
	return DialogText{
		Title:          orDefault(c.Title, DefaultTitle),
		Message:        orDefault(c.Message, DefaultMessage),
		RateButton:     orDefault(c.RateButton, DefaultRateButton),
		LaterButton:    orDefault(c.LaterButton, DefaultLaterButton),
		NoThanksButton: orDefault(c.NoThanksButton, DefaultNoThanksButton),
	}
}

// String returns a pointer to s, for building PromptConfig literals.
func String(s string) *string { return &s }

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
