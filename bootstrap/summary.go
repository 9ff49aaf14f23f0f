package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/changefeed/component"
	"github.com/kbukum/changefeed/logger"
)

// Summary renders the registered components with their description and
// current health.
func Summary(ctx context.Context, name, version string, reg *component.Registry, startup time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s started in %s\n", name, version, startup.Round(time.Millisecond))

	health := make(map[string]component.Health)
	for _, h := range reg.HealthAll(ctx) {
		health[h.Name] = h
	}
	for _, c := range reg.All() {
		h := health[c.Name()]
		line := fmt.Sprintf("  %-24s %-9s", c.Name(), h.Status)
		if d, ok := c.(component.Describable); ok {
			desc := d.Describe()
			line += fmt.Sprintf(" %-7s %s", desc.Type, desc.Details)
		}
		if h.Message != "" {
			line += " (" + h.Message + ")"
		}
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (a *App[C]) logSummary(ctx context.Context, startup time.Duration) {
	hs := a.Components.HealthAll(ctx)
	a.Logger.Info("Application started", logger.Fields(
		"name", a.Name,
		"version", a.Version,
		"components", len(hs),
		"health", string(component.Overall(hs)),
		logger.FieldDuration, startup.Milliseconds(),
	))
	a.Logger.Debug(Summary(ctx, a.Name, a.Version, a.Components, startup))
}
