package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/erfianugrah/do-rl-worker/ruleset"
)

const ruleFlagUsage = `define a bootstrap rate-limit rule, e.g. -rule name=basic,limit=20,period=60,param=clientIP
	possible rule properties:
	name: the rule's unique identifier (required)
	limit: the number of requests admitted per period (falls back to -default-rate-limit if omitted)
	period: the sliding window length in seconds (falls back to -default-rate-limit if omitted)
	param: a fingerprint parameter (repeatable: -rule ...,param=clientIP,param=headers.User-Agent)
	action: allow/log/simulate/block/rateLimit/customResponse (defaults to rateLimit)
	field: the field compared by the rule's single top-level condition
	operator: eq/ne/gt/ge/lt/le/contains/not_contains/starts_with/ends_with/matches
	value: the operand compared against field
	(see also §6A for the richer JSON rule shape exposed over the config store API)`

const enableRuleFlagUsage = `bootstrap the config store with one or more rate-limit rules at startup`

var errInvalidRuleConfig = errors.New("invalid rule config (missing name, malformed key=value pair or unknown key)")

// ruleFlags accumulates bootstrap rules parsed from repeated -rule flags,
// adapted from the teacher's ratelimitFlags: the same key=value,...
// parsing shape, generalized from a fixed ratelimit.Settings struct to
// the richer Rule/Condition/Action data model.
type ruleFlags []ruleset.Rule

func (r ruleFlags) String() string {
	names := make([]string, len(r))
	for i, ri := range r {
		names[i] = ri.Name
	}
	return strings.Join(names, ",")
}

func (r *ruleFlags) Set(value string) error {
	rule := ruleset.Rule{
		InitialMatch: ruleset.MatchBranch{
			Logic:  ruleset.And,
			Action: ruleset.Action{Type: ruleset.ActionRateLimit},
		},
	}
	var params []string
	var field, operator, operand string
	action := ruleset.ActionRateLimit

	vs := strings.SplitSeq(value, ",")
	for vi := range vs {
		k, v, found := strings.Cut(vi, "=")
		if !found {
			return errInvalidRuleConfig
		}

		switch k {
		case "name":
			rule.Name = v
		case "limit":
			i, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			rule.RateLimit.Limit = i
		case "period":
			i, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			rule.RateLimit.Period = i
		case "param":
			params = append(params, v)
		case "action":
			action = ruleset.ActionType(v)
		case "field":
			field = v
		case "operator":
			operator = v
		case "value":
			operand = v
		default:
			return errInvalidRuleConfig
		}
	}

	if rule.Name == "" {
		return errInvalidRuleConfig
	}
	if len(params) == 0 {
		params = []string{"clientIP"}
	}
	rule.Fingerprint = &ruleset.Fingerprint{Parameters: params}
	rule.InitialMatch.Action.Type = action
	if field != "" {
		rule.InitialMatch.Conditions = []ruleset.Condition{{
			Field:    field,
			Operator: ruleset.Operator(operator),
			Value:    operand,
		}}
	}

	// limit/period are allowed to be absent here: Options.BootstrapRuleset
	// fills them from -default-rate-limit and validates the fully-built
	// rule before it ever reaches the config store.
	*r = append(*r, rule)
	return nil
}

func (r *ruleFlags) UnmarshalYAML(unmarshal func(any) error) error {
	var rules []ruleset.Rule
	if err := unmarshal(&rules); err != nil {
		return err
	}
	for _, rule := range rules {
		if rule.Name == "" {
			return errInvalidRuleConfig
		}
	}
	*r = rules
	return nil
}
