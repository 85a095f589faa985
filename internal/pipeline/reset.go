package pipeline

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/cura/pkg/project"
)

// ResetScope selects which project state a reset deletes
type ResetScope string

const (
	ResetNothing ResetScope = "nothing"
	ResetBuffer  ResetScope = "data_buffer"
	ResetOutput  ResetScope = "data_out"
	ResetBoth    ResetScope = "both"
)

// ResetScopes lists the scopes in prompt order
var ResetScopes = []ResetScope{ResetNothing, ResetBuffer, ResetOutput, ResetBoth}

// ParseResetScope accepts a scope name; "project" and "all" mean both
func ParseResetScope(s string) (ResetScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nothing", "none":
		return ResetNothing, nil
	case "data_buffer", "buffer":
		return ResetBuffer, nil
	case "data_out", "out", "output":
		return ResetOutput, nil
	case "both", "project", "all":
		return ResetBoth, nil
	default:
		return "", fmt.Errorf("unknown reset scope %q, expected data_buffer, data_out or both", s)
	}
}

// Reset deletes the project state named by scope
func Reset(p *project.Project, scope ResetScope) error {
	switch scope {
	case ResetNothing:
		return nil
	case ResetBuffer:
		return p.ResetDataBuffer()
	case ResetOutput:
		return p.ResetDataOut()
	case ResetBoth:
		return p.ResetProject()
	default:
		return fmt.Errorf("unknown reset scope %q", scope)
	}
}

func scopeNames() []string {
	names := make([]string, len(ResetScopes))
	for i, s := range ResetScopes {
		names[i] = string(s)
	}
	return names
}
