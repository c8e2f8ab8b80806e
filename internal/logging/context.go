package logging

import "context"

// Context keys for logging values. Using private types avoids key
// collisions with values set by other packages.
type contextKey int

const (
	runIDKey contextKey = iota
	repositoryIDKey
	scenarioKindKey
	componentKey
	agentKey
)

// WithRun adds the mining/replay run ID to the context.
func WithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithRepository adds the repository ID currently being mined or replayed
// against to the context.
func WithRepository(ctx context.Context, repositoryID string) context.Context {
	return context.WithValue(ctx, repositoryIDKey, repositoryID)
}

// WithScenarioKind adds the scenario kind currently being set up, evaluated,
// or torn down to the context.
func WithScenarioKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, scenarioKindKey, kind)
}

// WithComponent adds a component name to the context, identifying the
// subsystem generating a log line (e.g. "miner", "sandbox", "driver").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithAgent adds the name of the external software agent under evaluation
// to the context (e.g. "claude-code", "aider").
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey, agent)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RunIDFromContext extracts the run ID from the context, empty if unset.
func RunIDFromContext(ctx context.Context) string { return stringFromContext(ctx, runIDKey) }

// RepositoryIDFromContext extracts the repository ID from the context,
// empty if unset.
func RepositoryIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, repositoryIDKey)
}

// ScenarioKindFromContext extracts the scenario kind from the context,
// empty if unset.
func ScenarioKindFromContext(ctx context.Context) string {
	return stringFromContext(ctx, scenarioKindKey)
}

// ComponentFromContext extracts the component name from the context, empty
// if unset.
func ComponentFromContext(ctx context.Context) string { return stringFromContext(ctx, componentKey) }

// AgentFromContext extracts the agent name from the context, empty if
// unset.
func AgentFromContext(ctx context.Context) string { return stringFromContext(ctx, agentKey) }
