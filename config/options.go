// Package config centralizes the gateway's command-line flags, matching
// the teacher's config package: a flat Options struct, small custom
// flag.Value implementations for list/map-shaped settings, and an
// optional YAML bootstrap file that seeds the config store.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	gwnet "github.com/erfianugrah/do-rl-worker/net"
	"github.com/erfianugrah/do-rl-worker/ruleset"
)

const (
	redisPasswordEnv = "REDIS_PASSWORD"

	defaultAddress           = ":9090"
	defaultMetricsAddress    = ":9911"
	defaultConfigCacheTTL    = 60 * time.Second
	defaultRateLimitInfoPath = "/rate-limit-info"
	defaultCounterBackend    = "memory"
)

// Options holds every setting the gateway process needs, populated from
// flags, an optional YAML config file, and environment variables —
// flags win, env/YAML seed defaults, mirroring the teacher's precedence.
type Options struct {
	ConfigFile string
	Flags      *flag.FlagSet

	Address        string `yaml:"address"`
	MetricsAddress string `yaml:"metrics-address"`

	ConfigCacheTTL    time.Duration `yaml:"config-cache-ttl"`
	RateLimitInfoPath string        `yaml:"rate-limit-info-path"`

	CounterBackend string   `yaml:"counter-backend"` // memory|redis
	RedisAddrs     multiFlag `yaml:"redis-addrs"`
	RedisPassword  string   `yaml:"-"`

	Rules ruleFlags `yaml:"rules"`
	// DefaultRateLimit fills in RateLimit for -rule/-config-file rules
	// that omit one, e.g. -default-rate-limit "limit: 100, period: 60".
	DefaultRateLimit *ruleset.RateLimit `yaml:"default-rate-limit"`

	AccessLogFormat      string `yaml:"access-log-format"` // json, or any other value (common, combined) for the extended combined line
	ApplicationLogLevel  string `yaml:"application-log-level"`
	ApplicationLogJSON   bool   `yaml:"application-log-json"`

	EnableRuntimeMetrics bool `yaml:"enable-runtime-metrics"`

	// IgnorePathPatterns exempts matching request paths from the
	// pipeline entirely (e.g. health-check probes), checked before the
	// fingerprinter ever runs.
	IgnorePathPatterns regexpListFlag `yaml:"-"`
	// ResponseHeaders are static headers merged onto every response the
	// dispatcher synthesizes (block/customResponse/rateLimit), on top of
	// the per-decision X-Rate-Limit-* set.
	ResponseHeaders mapFlags `yaml:"-"`

	// HostRemovePort/HostLowercase/HostRemoveTrailingDot normalize the
	// Host header before it reaches the pipeline, so a rule condition on
	// "host" isn't fooled by an incidental :port, case or trailing dot.
	HostRemovePort        bool `yaml:"host-remove-port"`
	HostLowercase         bool `yaml:"host-lowercase"`
	HostRemoveTrailingDot bool `yaml:"host-remove-trailing-dot"`

	// RefusePayload rejects, with 400, any request whose URI or header
	// name/value contains one of these substrings (repeatable).
	RefusePayload multiFlag `yaml:"refuse-payload"`
	// ValidateQuery rejects requests with a malformed query string.
	ValidateQuery bool `yaml:"validate-query"`

	// MaxRequestHeaderSize rejects, with 431, any request whose
	// approximate header size exceeds this many bytes. Zero disables
	// the check.
	MaxRequestHeaderSize int `yaml:"max-request-header-size"`
}

// NewOptions returns an Options with every default populated and its
// FlagSet ready for Parse/ParseArgs, mirroring config.NewConfig.
func NewOptions() *Options {
	o := &Options{
		Address:           defaultAddress,
		MetricsAddress:    defaultMetricsAddress,
		ConfigCacheTTL:    defaultConfigCacheTTL,
		RateLimitInfoPath: defaultRateLimitInfoPath,
		CounterBackend:    defaultCounterBackend,
		AccessLogFormat:   "common",
	}

	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&o.ConfigFile, "config-file", "", "if provided, flags are loaded/overwritten by the values in this YAML file")
	fs.StringVar(&o.Address, "address", defaultAddress, "network address the gateway listens on")
	fs.StringVar(&o.MetricsAddress, "metrics-address", defaultMetricsAddress, "network address used for exposing /healthz and /metrics")
	fs.DurationVar(&o.ConfigCacheTTL, "config-cache-ttl", defaultConfigCacheTTL, "max age of the cached ruleset snapshot before a refresh is attempted")
	fs.StringVar(&o.RateLimitInfoPath, "rate-limit-info-path", defaultRateLimitInfoPath, "path serving the caller's current rate-limit status")
	fs.StringVar(&o.CounterBackend, "counter-backend", defaultCounterBackend, "counter store backend: memory or redis")
	fs.Var(&o.RedisAddrs, "redis-addr", "redis node address (repeatable for a cluster client)")
	fs.Var(&o.Rules, "rule", ruleFlagUsage)
	fs.Var(newYamlFlag(&o.DefaultRateLimit), "default-rate-limit",
		"fallback rateLimit (flow-style YAML, e.g. '{limit: 100, period: 60}') for -rule flags that omit one")
	fs.StringVar(&o.AccessLogFormat, "access-log-format", "common", "access log format: json, or common/combined (both give the Apache combined line extended with duration, rule and action)")
	fs.StringVar(&o.ApplicationLogLevel, "application-log-level", "info", "application log level")
	fs.BoolVar(&o.ApplicationLogJSON, "application-log-json", false, "emit the application log as JSON")
	fs.BoolVar(&o.EnableRuntimeMetrics, "enable-runtime-metrics", false, "expose Go runtime/process metrics alongside domain metrics")
	fs.Var(&o.IgnorePathPatterns, "ignore-path-pattern", "regular expression matching request paths that bypass the pipeline entirely (repeatable)")
	fs.Var(&o.ResponseHeaders, "response-header", "static key=value header merged onto every synthesized response (comma-separated for multiple)")
	fs.BoolVar(&o.HostRemovePort, "host-remove-port", false, "strip :port from the Host header before the pipeline runs")
	fs.BoolVar(&o.HostLowercase, "host-lowercase", false, "lowercase the Host header before the pipeline runs")
	fs.BoolVar(&o.HostRemoveTrailingDot, "host-remove-trailing-dot", false, "strip a trailing dot from the Host header before the pipeline runs")
	fs.Var(&o.RefusePayload, "refuse-payload", "reject requests whose URI or headers contain this substring, with 400 (repeatable)")
	fs.BoolVar(&o.ValidateQuery, "validate-query", false, "reject requests with a malformed query string, with 400")
	fs.IntVar(&o.MaxRequestHeaderSize, "max-request-header-size", 0, "reject requests whose approximate header size exceeds this many bytes, with 431 (0 disables)")
	o.Flags = fs

	return o
}

// Parse parses os.Args using the process's own name, mirroring Config.Parse.
func (o *Options) Parse() error {
	return o.ParseArgs(os.Args[0], os.Args[1:])
}

// ParseArgs parses args, optionally loading a YAML config file first so
// that explicit flags still override it, then applies environment
// variable defaults for anything left unset.
func (o *Options) ParseArgs(progname string, args []string) error {
	o.Flags.Init(progname, flag.ExitOnError)
	if err := o.Flags.Parse(args); err != nil {
		return err
	}

	if len(o.Flags.Args()) != 0 {
		return fmt.Errorf("invalid arguments: %s", o.Flags.Args())
	}

	if o.ConfigFile != "" {
		raw, err := os.ReadFile(o.ConfigFile)
		if err != nil {
			return fmt.Errorf("invalid config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, o); err != nil {
			return fmt.Errorf("unmarshalling config file error: %w", err)
		}
		// re-apply flags so CLI arguments still win over the file.
		if err := o.Flags.Parse(args); err != nil {
			return err
		}
	}

	o.parseEnv()
	return nil
}

// HostPatch builds the net.HostPatch the server applies to every
// request's Host header, from the -host-* flags.
func (o *Options) HostPatch() gwnet.HostPatch {
	return gwnet.HostPatch{
		RemovePort:        o.HostRemovePort,
		RemoveTrailingDot: o.HostRemoveTrailingDot,
		ToLower:           o.HostLowercase,
	}
}

func (o *Options) parseEnv() {
	if o.RedisPassword == "" {
		o.RedisPassword = os.Getenv(redisPasswordEnv)
	}
}

// BootstrapRuleset builds the Ruleset the config store is seeded with at
// startup, from whichever -rule flags (or YAML rules:) were supplied.
// Rules missing a RateLimit are filled from -default-rate-limit; a rule
// that still has none after that, or otherwise fails Rule.Validate, is a
// startup error rather than a silently-dropped rule.
func (o *Options) BootstrapRuleset() (ruleset.Ruleset, error) {
	rules := append([]ruleset.Rule(nil), o.Rules...)
	for i := range rules {
		if rules[i].RateLimit.Limit <= 0 || rules[i].RateLimit.Period <= 0 {
			if o.DefaultRateLimit == nil {
				return ruleset.Ruleset{}, fmt.Errorf("rule %q: no rateLimit given and -default-rate-limit not set", rules[i].Name)
			}
			rules[i].RateLimit = *o.DefaultRateLimit
		}
		if err := rules[i].Validate(); err != nil {
			return ruleset.Ruleset{}, fmt.Errorf("bootstrap rule: %w", err)
		}
	}
	return ruleset.Ruleset{Version: "bootstrap", Rules: rules}, nil
}
