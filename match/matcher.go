package match

import (
	log "github.com/sirupsen/logrus"

	"github.com/erfianugrah/do-rl-worker/ruleset"
)

// Result is the outcome of walking a ruleset against one request.
type Result struct {
	// Matched reports whether any rule produced an action at all
	// (terminal or the last recorded non-terminal/else fallback).
	Matched bool

	Rule   ruleset.Rule
	Action ruleset.Action
}

// Match walks rules in order, applying the evaluator to initialMatch and
// elseIfActions, and returns the winning (rule, action) pair per the
// precedence rules for terminal vs observational actions.
func Match(rs ruleset.Ruleset, ctx Context) Result {
	var lastElse *matched
	var lastObservational *matched

	for _, rule := range rs.Rules {
		if err := rule.Validate(); err != nil {
			log.WithError(err).WithField("rule", rule.Name).Warn("match: skipping malformed rule")
			continue
		}

		if EvaluateAll(rule.InitialMatch.Conditions, rule.InitialMatch.Logic, ctx) {
			if res, ok := record(rule, rule.InitialMatch.Action, &lastObservational); ok {
				return res
			}
			continue
		}

		res, branchMatched := matchElseIf(rule, ctx, &lastObservational)
		if res != nil {
			return *res
		}
		if branchMatched {
			// an elseIf branch already matched (non-terminally, recorded
			// into lastObservational) — the rule's own elseAction is not
			// a further fallback for this rule.
			continue
		}

		if rule.ElseAction != nil {
			lastElse = &matched{Rule: rule, Action: *rule.ElseAction}
		}
	}

	if lastElse != nil {
		return Result{Matched: true, Rule: lastElse.Rule, Action: lastElse.Action}
	}
	if lastObservational != nil {
		return Result{Matched: true, Rule: lastObservational.Rule, Action: lastObservational.Action}
	}
	return Result{Matched: false}
}

type matched struct {
	Rule   ruleset.Rule
	Action ruleset.Action
}

// record applies the terminal/non-terminal precedence rule for one
// matched branch: a terminal action returns immediately; an
// observational action (log, simulate) is remembered and evaluation
// continues to later rules.
func record(rule ruleset.Rule, action ruleset.Action, lastObservational **matched) (Result, bool) {
	if action.Type.Terminal() {
		return Result{Matched: true, Rule: rule, Action: action}, true
	}
	*lastObservational = &matched{Rule: rule, Action: action}
	return Result{}, false
}

// matchElseIf evaluates a rule's elseIfActions in order. It returns a
// non-nil *Result when the first matching branch's action is terminal.
// The second return reports whether any branch matched at all, terminal
// or not, so the caller can tell "no branch matched" (the rule's
// elseAction is still a valid fallback) apart from "a branch matched
// non-terminally" (the rule's elseAction must not also apply).
func matchElseIf(rule ruleset.Rule, ctx Context, lastObservational **matched) (*Result, bool) {
	for _, branch := range rule.ElseIfActions {
		if !EvaluateAll(branch.Conditions, branch.Logic, ctx) {
			continue
		}
		if res, ok := record(rule, branch.Action, lastObservational); ok {
			return &res, true
		}
		return nil, true
	}
	return nil, false
}
