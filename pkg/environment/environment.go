// Package environment names the deployment environments the service runs in.
package environment

import "strings"

// Environment represents the application deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse maps common spellings to an Environment. Unknown values fall back to Development.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

func (e Environment) IsProduction() bool { return Parse(string(e)) == Production }

func (e Environment) IsDevelopment() bool { return Parse(string(e)) == Development }
