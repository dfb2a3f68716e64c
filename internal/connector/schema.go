package connector

import (
	"fmt"
	"strings"
)

// Field is a single input in a connector settings form.
type Field struct {
	Name      string `json:"model"`
	Type      string `json:"type"`
	InputType string `json:"inputType"`
	Required  bool   `json:"required"`
	Label     string `json:"label"`
	Hint      string `json:"hint,omitempty"`
	Help      string `json:"help,omitempty"`
}

// Form is a declarative settings schema rendered by the host UI.
type Form struct {
	Fields []Field `json:"fields"`
}

// TextInput returns a text input field named name.
func TextInput(name string) Field {
	return Field{Name: name, Type: "input", InputType: "text"}
}

// Settings are the values a host supplies for a connector's form.
type Settings map[string]string

// Get returns the setting named key, or the empty string.
func (s Settings) Get(key string) string {
	return s[key]
}

// Validate reports every required field of form missing from s.
func (s Settings) Validate(form Form) error {
	var missing []string
	for _, f := range form.Fields {
		if f.Required && strings.TrimSpace(s[f.Name]) == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
