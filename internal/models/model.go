package models

// Upstream is one chat-completion endpoint the relay may call.
type Upstream struct {
	Name        string  `yaml:"name"`         // display name, used as metric label
	BaseURL     string  `yaml:"base_url"`     // full chat completions URL
	APIKey      string  `yaml:"api_key"`      // bearer key, may be empty
	Weight      int     `yaml:"weight"`       // weight for the weighted strategy
	InputPrice  float64 `yaml:"input_price"`  // per prompt token
	OutputPrice float64 `yaml:"output_price"` // per completion token
}

// HasKey reports whether a bearer key is configured.
func (u *Upstream) HasKey() bool {
	return u != nil && u.APIKey != ""
}
