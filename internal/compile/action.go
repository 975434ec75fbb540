package compile

import (
	"strings"

	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/profile"
)

// cookieHeader is the request header that enabled cookie syncs append to.
const cookieHeader = "cookie"

// Action compiles a profile's mod groups and cookie syncs into an engine
// action. Order is preserved: request header mods in group order, then one
// append per enabled cookie sync, then response header mods. The returned
// action may be empty; callers skip rule emission in that case.
func Action(core profile.Core) engine.Action {
	act := engine.Action{Type: engine.ActionTypeModifyHeaders}

	for _, g := range core.RequestHeaderModGroups {
		for _, m := range g.Items {
			if info, ok := requestHeaderInfo(m); ok {
				act.RequestHeaders = append(act.RequestHeaders, info)
			}
		}
	}

	for _, g := range core.SyncCookieGroups {
		for _, c := range g.Items {
			if !c.Enabled {
				continue
			}
			name := strings.TrimSpace(c.Name)
			value := strings.TrimSpace(c.Value)
			if name == "" || value == "" {
				continue
			}
			act.RequestHeaders = append(act.RequestHeaders, engine.ModifyHeaderInfo{
				Header:    cookieHeader,
				Operation: engine.HeaderAppend,
				Value:     name + "=" + value,
			})
		}
	}

	for _, g := range core.ResponseHeaderModGroups {
		for _, m := range g.Items {
			if info, ok := responseHeaderInfo(m); ok {
				act.ResponseHeaders = append(act.ResponseHeaders, info)
			}
		}
	}

	return act
}

// requestHeaderInfo compiles one request-side header mod. Request header
// names are case-insensitive on the wire, so they are normalized to lower
// case to keep compiled output canonical.
func requestHeaderInfo(m profile.HeaderMod) (engine.ModifyHeaderInfo, bool) {
	return headerInfo(m, true)
}

// responseHeaderInfo compiles one response-side header mod. Response header
// names keep their case apart from trimming.
func responseHeaderInfo(m profile.HeaderMod) (engine.ModifyHeaderInfo, bool) {
	return headerInfo(m, false)
}

func headerInfo(m profile.HeaderMod, lowerName bool) (engine.ModifyHeaderInfo, bool) {
	if !m.Enabled {
		return engine.ModifyHeaderInfo{}, false
	}
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return engine.ModifyHeaderInfo{}, false
	}
	if lowerName {
		name = strings.ToLower(name)
	}
	info := engine.ModifyHeaderInfo{Header: name, Operation: operationOf(m.Operation)}
	if info.Operation != engine.HeaderRemove {
		value := strings.TrimSpace(m.Value)
		if value == "" {
			// A set or append with no value modifies nothing. Unlike
			// remove, it is dropped rather than emitted valueless.
			return engine.ModifyHeaderInfo{}, false
		}
		info.Value = value
	}
	return info, true
}

func operationOf(op profile.Operation) engine.HeaderOperation {
	switch op {
	case profile.OpSet:
		return engine.HeaderSet
	case profile.OpAppend:
		return engine.HeaderAppend
	case profile.OpRemove:
		return engine.HeaderRemove
	default:
		// Unknown operations compile as set rather than poisoning the
		// whole rule.
		return engine.HeaderSet
	}
}
