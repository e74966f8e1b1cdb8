// Package domain contains core domain types for the lead intelligence dashboard.
package domain

// Provider names one external AI provider a credential authorizes.
type Provider string

const (
	// ProviderChat is the chat-completions provider.
	ProviderChat Provider = "chat-provider"
	// ProviderInference is the hosted model-inference provider.
	ProviderInference Provider = "inference-provider"
)

// Providers lists the providers the dashboard talks to.
func Providers() []Provider {
	return []Provider{ProviderChat, ProviderInference}
}

// Known reports whether p is one of the dashboard's providers.
func (p Provider) Known() bool {
	return p == ProviderChat || p == ProviderInference
}
