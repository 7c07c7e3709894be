package extract

import "strings"

// Assigner routes leads to agents by property state
type Assigner struct {
	defaultAgent string
	byState      map[string]string
}

// NewAssigner builds an assigner. byState keys may be state names or codes.
func NewAssigner(defaultAgent string, byState map[string]string) *Assigner {
	a := &Assigner{
		defaultAgent: strings.TrimSpace(defaultAgent),
		byState:      make(map[string]string, len(byState)),
	}
	for state, agent := range byState {
		a.byState[NormalizeState(state)] = strings.TrimSpace(agent)
	}
	return a
}

// Assign returns the agent for state, or the default agent.
func (a *Assigner) Assign(state string) string {
	if a == nil {
		return ""
	}
	if agent, ok := a.byState[NormalizeState(state)]; ok && agent != "" {
		return agent
	}
	return a.defaultAgent
}

// Apply sets call.Agent from its state when not already set.
func (a *Assigner) Apply(call *Call) {
	if call.Agent == "" {
		call.Agent = a.Assign(call.State)
	}
}
