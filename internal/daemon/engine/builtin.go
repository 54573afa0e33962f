package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/resolvekit/resolverd/internal/daemon/modules"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// builtinModules are registered during Init, in this order. The resolution
// pipeline stages carry no control-plane surface; stats and reputation
// expose native properties.
var builtinModules = []string{
	"iterate",
	"validate",
	"rrcache",
	"pktcache",
	"stats",
	"reputation",
}

// nativeLoader serves the compiled-in modules. Unknown names report
// ErrNotFound so the registry falls through to the scripted loader.
type nativeLoader struct{}

func (nativeLoader) Load(name string) (*modules.Module, error) {
	switch name {
	case "iterate", "validate", "rrcache", "pktcache":
		return &modules.Module{Name: name}, nil
	case "stats":
		return statsModule(), nil
	case "reputation":
		return reputationModule(), nil
	default:
		return nil, modules.ErrNotFound
	}
}

func statsModule() *modules.Module {
	return &modules.Module{
		Name: "stats",
		Props: []modules.Prop{
			{Name: "list", Info: "runtime overview", Cb: modules.NativeProp(statsList)},
			{Name: "modules", Info: "loaded modules in precedence order", Cb: modules.NativeProp(statsModules)},
			{Name: "uptime", Info: "engine uptime in milliseconds", Cb: modules.NativeProp(statsUptime)},
		},
	}
}

func statsList(h modules.Host, _ *modules.Module, _ string) (string, error) {
	names := h.ModuleNames()
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.Encode(value.Object(map[string]value.Value{
		"uptime_ms": value.Number(float64(h.Uptime().Milliseconds())),
		"modules":   value.Array(elems...),
	})), nil
}

func statsModules(h modules.Host, _ *modules.Module, _ string) (string, error) {
	names := h.ModuleNames()
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.Encode(value.Array(elems...)), nil
}

func statsUptime(h modules.Host, _ *modules.Module, _ string) (string, error) {
	return value.Encode(value.Number(float64(h.Uptime().Milliseconds()))), nil
}

func reputationModule() *modules.Module {
	return &modules.Module{
		Name: "reputation",
		Props: []modules.Prop{
			{Name: "scores", Info: "peer score table", Cb: modules.NativeProp(reputationScores)},
			{Name: "evict", Info: "drop a peer from the table", Cb: modules.NativeProp(reputationEvict)},
			{Name: "set", Info: "record a peer score: <peer> <score>", Cb: modules.NativeProp(reputationSet)},
		},
	}
}

func reputationScores(h modules.Host, _ *modules.Module, _ string) (string, error) {
	scores := h.PeerScores()
	fields := make(map[string]value.Value, len(scores))
	for peer, score := range scores {
		fields[peer] = value.Number(score)
	}
	return value.Encode(value.Object(fields)), nil
}

func reputationEvict(h modules.Host, _ *modules.Module, arg string) (string, error) {
	peer := strings.TrimSpace(arg)
	if peer == "" {
		return "", fmt.Errorf("reputation: evict needs a peer")
	}
	return value.Encode(value.Bool(h.EvictPeer(peer))), nil
}

func reputationSet(h modules.Host, _ *modules.Module, arg string) (string, error) {
	parts := strings.Fields(arg)
	if len(parts) != 2 {
		return "", fmt.Errorf("reputation: set needs <peer> <score>")
	}
	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", fmt.Errorf("reputation: bad score %q: %w", parts[1], err)
	}
	h.SetPeerScore(parts[0], score)
	return value.Encode(value.Bool(true)), nil
}
