package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/headmod/internal/client"
	"grimm.is/headmod/internal/compile"
	"grimm.is/headmod/internal/engine"
	"grimm.is/headmod/internal/profile"
)

// RunDiff compares what the stored profiles compile to against the rules
// the engine actually holds, via a running daemon. A clean engine returns
// nil; a divergence prints a unified diff and returns an error so scripts
// can gate on the exit code.
func RunDiff(addr string, nativeResourceTypes bool) error {
	c := client.NewHTTPClient(addr)

	profiles, err := c.ListProfiles()
	if err != nil {
		return fmt.Errorf("fetching profiles: %w", err)
	}
	ruleIDs, err := c.RuleIDs()
	if err != nil {
		return fmt.Errorf("fetching rule map: %w", err)
	}
	registered, err := c.ListEngineRules()
	if err != nil {
		return fmt.Errorf("fetching engine rules: %w", err)
	}

	opts := compile.Options{NativeResourceTypeBehavior: nativeResourceTypes}
	var expected []engine.Rule
	for i := range profiles {
		p := &profiles[i]
		if !p.Enabled {
			continue
		}
		id := ruleIDs[p.ID]
		if id == 0 {
			// Unsynced profile: show it with a placeholder id so the
			// divergence is visible rather than silently skipped.
			id = -1
		}
		if rule, ok := compile.Rule(profile.CoreOf(p), id, opts); ok {
			expected = append(expected, rule)
		}
	}

	want := renderRules(expected)
	got := renderRules(registered)
	if want == got {
		fmt.Println("No changes detected.")
		return nil
	}

	fmt.Println("Engine rules differ from compiled profiles:")
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "Compiled",
		ToFile:   "Engine",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	fmt.Print(text)
	return fmt.Errorf("engine state differs")
}

func renderRules(rules []engine.Rule) string {
	sorted := append([]engine.Rule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return ""
	}
	return string(out) + "\n"
}
