// Package engine defines the wire types and call boundary of the external
// declarative rule-matching engine. The core talks to the engine through
// exactly two primitives: listing the currently registered rules and applying
// a combined remove/add change set. Everything else (matching, interception)
// is the engine's business.
package engine

// HeaderOperation is a header rewrite operation understood by the engine.
type HeaderOperation string

const (
	HeaderSet    HeaderOperation = "set"
	HeaderAppend HeaderOperation = "append"
	HeaderRemove HeaderOperation = "remove"
)

// ModifyHeaderInfo is a single header rewrite instruction inside an action.
type ModifyHeaderInfo struct {
	Header    string          `json:"header"`
	Operation HeaderOperation `json:"operation"`
	Value     string          `json:"value,omitempty"`
}

// ActionTypeModifyHeaders is the only action type the core emits.
const ActionTypeModifyHeaders = "modifyHeaders"

// Action describes what the engine does to a matched request.
type Action struct {
	Type            string             `json:"type"`
	RequestHeaders  []ModifyHeaderInfo `json:"requestHeaders,omitempty"`
	ResponseHeaders []ModifyHeaderInfo `json:"responseHeaders,omitempty"`
}

// IsEmpty reports whether the action modifies nothing. An empty action must
// not be registered as a rule.
func (a Action) IsEmpty() bool {
	return len(a.RequestHeaders) == 0 && len(a.ResponseHeaders) == 0
}

// Condition describes when a rule matches. Absent fields are unconstrained.
type Condition struct {
	URLFilter                string   `json:"urlFilter,omitempty"`
	RegexFilter              string   `json:"regexFilter,omitempty"`
	RequestDomains           []string `json:"requestDomains,omitempty"`
	ExcludedRequestDomains   []string `json:"excludedRequestDomains,omitempty"`
	InitiatorDomains         []string `json:"initiatorDomains,omitempty"`
	ExcludedInitiatorDomains []string `json:"excludedInitiatorDomains,omitempty"`
	DomainType               string   `json:"domainType,omitempty"`
	IsURLFilterCaseSensitive *bool    `json:"isUrlFilterCaseSensitive,omitempty"`
	ResourceTypes            []string `json:"resourceTypes,omitempty"`
	ExcludedResourceTypes    []string `json:"excludedResourceTypes,omitempty"`
	RequestMethods           []string `json:"requestMethods,omitempty"`
	ExcludedRequestMethods   []string `json:"excludedRequestMethods,omitempty"`
}

// Rule is one registered engine rule. IDs are engine-scoped positive
// integers, distinct from profile identifiers.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
}

// Changes is the combined remove/add primitive. A single call may remove,
// add, or do both (modify-as-remove-then-add). Atomicity is per call:
// implementations either apply everything or report failure, except where
// documented otherwise.
type Changes struct {
	RemoveRuleIDs []int  `json:"removeRuleIds,omitempty"`
	AddRules      []Rule `json:"addRules,omitempty"`
}

// IsZero reports whether the change set does nothing.
func (c Changes) IsZero() bool {
	return len(c.RemoveRuleIDs) == 0 && len(c.AddRules) == 0
}

// AllResourceTypes is the full set of resource type values the engine knows.
// Used to compile the explicit "match everything" resource-type facet, since
// the engine's true default excludes main_frame, which surprises users.
var AllResourceTypes = []string{
	"main_frame",
	"sub_frame",
	"stylesheet",
	"script",
	"image",
	"font",
	"object",
	"xmlhttprequest",
	"ping",
	"csp_report",
	"media",
	"websocket",
	"webtransport",
	"webbundle",
	"other",
}
