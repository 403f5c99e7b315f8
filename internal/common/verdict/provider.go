// Package verdict is the client side of the judgment service: it asks one
// agent persona about one citation and turns the answer into a verdict.
package verdict

import (
	"context"

	"citation-validator/internal/models"
	"citation-validator/pkg/registry"
)

// Request is one persona's evaluation of one citation.
type Request struct {
	Persona  registry.Persona
	Tier     models.Tier
	Citation models.Citation
	Context  models.CitationContext
	// Tier2 is the earlier panel result handed to escalation personas.
	Tier2 *models.Tier2Result
}

// Judgment is the raw provider answer before parsing.
type Judgment struct {
	Content string
	Model   string
	Usage   models.Usage
}

// Provider evaluates a citation as one agent persona. Implementations may
// fail transiently; callers treat any error as a failed panel.
type Provider interface {
	Evaluate(ctx context.Context, req Request) (*Judgment, error)
}

// CredentialChecker is implemented by providers that need credentials.
type CredentialChecker interface {
	CheckCredentials() error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) (*Judgment, error)

func (f ProviderFunc) Evaluate(ctx context.Context, req Request) (*Judgment, error) {
	return f(ctx, req)
}
