package pipeline

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"hermes":  api.EngineHermes,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"rhino":   api.EngineRhino,
	"safari":  api.EngineSafari,
}

// parseEngines converts targets like "chrome58" or "safari11.1" into esbuild
// engines.
func parseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexFunc(t, func(r rune) bool { return r >= '0' && r <= '9' })
		if i <= 0 {
			return nil, fmt.Errorf("browser target %q needs a name and a version", t)
		}
		name, ok := engineNames[t[:i]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q", t[:i])
		}
		engines = append(engines, api.Engine{Name: name, Version: t[i:]})
	}
	return engines, nil
}

var jsTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es6":    api.ES2015,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

func parseTarget(s string) (api.Target, error) {
	if s == "" {
		return api.ES2015, nil
	}
	t, ok := jsTargets[strings.ToLower(s)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", s)
	}
	return t, nil
}

func formatMessages(msgs []api.Message, kind api.MessageKind) string {
	return strings.TrimSpace(strings.Join(api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind}), "\n"))
}
