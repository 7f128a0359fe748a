package model

import (
	"fmt"
	"regexp"
)

// MaxProviderLen bounds provider names so they stay usable as index keys.
const MaxProviderLen = 64

// MaxProvidersPerRequest bounds how many distinct providers one read may ask for.
const MaxProvidersPerRequest = 256

var providerPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// KnownProvider is an entry of the provider registry offered to clients.
// The registry is advisory: the vault stores any well-formed provider name.
type KnownProvider struct {
	Name  string
	Label string
}

// KnownProviders lists the services the platform currently integrates with.
var KnownProviders = []KnownProvider{
	{Name: "anthropic", Label: "Anthropic API Key"},
	{Name: "openai", Label: "OpenAI API Key"},
	{Name: "cursor", Label: "Cursor API Key"},
	{Name: "ai_gateway", Label: "AI Gateway API Key"},
	{Name: "github", Label: "GitHub Token"},
	{Name: "npm", Label: "NPM Token"},
	{Name: "vercel_team_id", Label: "Vercel Team ID"},
	{Name: "vercel_project_id", Label: "Vercel Project ID"},
	{Name: "vercel_token", Label: "Vercel Token"},
}

// IsKnownProvider reports whether name is part of the provider registry.
func IsKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ValidateProvider checks that name is a usable provider key.
func ValidateProvider(name string) error {
	if name == "" {
		return &ValidationError{Field: "provider", Reason: "is required"}
	}
	if len(name) > MaxProviderLen {
		return &ValidationError{Field: "provider", Reason: fmt.Sprintf("exceeds %d characters", MaxProviderLen)}
	}
	if !providerPattern.MatchString(name) {
		return &ValidationError{Field: "provider", Reason: "must contain only a-z, 0-9, '_' or '-'"}
	}
	return nil
}

// ValidateUserID checks that an identity was resolved before reaching the vault.
func ValidateUserID(userID string) error {
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	return nil
}
