package engine

import (
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// Fanout evaluates cmd on this process and on every sibling peer, returning
// one result per participant. Slot 0 is the local result; slots 1..n follow
// the peers in rank order. A failed exchange yields false in that peer's
// slot, a response that does not parse is surfaced as its raw text, and an
// empty response means the command produced no value there.
//
// Must run on the control goroutine; it evaluates through the scripting
// environment directly.
func (e *Engine) Fanout(cmd string) []value.Value {
	results := make([]value.Value, 0, len(e.peers)+1)

	v, has, err := e.script.Eval(cmd, true)
	switch {
	case err != nil:
		results = append(results, value.String(err.Error()))
	case !has:
		results = append(results, value.Null())
	default:
		results = append(results, v)
	}

	for _, p := range e.peers {
		resp, err := p.Exchange([]byte(cmd), e.cfg.FanoutTimeout)
		if err != nil {
			e.logger.Warn(map[string]any{"peer": p.Rank(), "error": err.Error()}, "fanout exchange failed")
			results = append(results, value.Bool(false))
			continue
		}
		if len(resp) == 0 {
			results = append(results, value.Null())
			continue
		}
		parsed, err := value.Decode(string(resp))
		if err != nil {
			results = append(results, value.String(string(resp)))
			continue
		}
		results = append(results, parsed)
	}

	return results
}
