package ratelimit

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rule limits requests whose method matches and whose path ends with Suffix.
type Rule struct {
	Method string
	Suffix string
	Limit  int           // Maximum requests per window, 0 means unlimited
	Window time.Duration // Refill window
	Burst  int           // Bucket capacity, defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled       bool
	DefaultLimit  int
	DefaultWindow time.Duration
	IdleTTL       time.Duration // Buckets unused this long are dropped
	Whitelist     map[string]bool
	Rules         []Rule
}

const envPrefix = "AUDIT_RATE_LIMIT_"

// LoadConfig reads rate limiting configuration from AUDIT_RATE_LIMIT_*
// variables. AUDIT_RATE_LIMIT_RULES replaces DefaultRules when set.
func LoadConfig() (*Config, error) {
	return loadConfig(os.LookupEnv)
}

func loadConfig(lookup func(string) (string, bool)) (*Config, error) {
	env := envReader{lookup: lookup}
	cfg := &Config{
		Enabled:       env.bool("ENABLED", true),
		DefaultLimit:  env.int("DEFAULT_LIMIT", 600),
		DefaultWindow: env.duration("DEFAULT_WINDOW", time.Minute),
		IdleTTL:       env.duration("IDLE_TTL", time.Hour),
		Whitelist:     make(map[string]bool),
		Rules:         DefaultRules(),
	}
	if env.err != nil {
		return nil, env.err
	}

	if list, ok := lookup(envPrefix + "WHITELIST"); ok {
		for _, addr := range strings.Split(list, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" {
				continue
			}
			ip := net.ParseIP(addr)
			if ip == nil {
				return nil, fmt.Errorf("%sWHITELIST: %q is not an IP address", envPrefix, addr)
			}
			cfg.Whitelist[ip.String()] = true
		}
	}

	if spec, ok := lookup(envPrefix + "RULES"); ok && strings.TrimSpace(spec) != "" {
		rules, err := ParseRules(spec)
		if err != nil {
			return nil, err
		}
		cfg.Rules = rules
	}
	return cfg, nil
}

// DefaultRules limits the endpoints that call the language model.
func DefaultRules() []Rule {
	llm := func(suffix string) Rule {
		return Rule{Method: "POST", Suffix: suffix, Limit: 30, Window: time.Hour, Burst: 5}
	}
	return []Rule{
		llm("/suggestion"),
		llm("/revision/confirm"),
		llm("/revision/acknowledge"),
		{Method: "POST", Suffix: "/audit/stream", Limit: 20, Window: time.Hour, Burst: 2},
		{Method: "POST", Suffix: "/documents", Limit: 120, Window: time.Minute, Burst: 20},
	}
}

// ParseRules reads a semicolon separated list of rules written as
// "METHOD /suffix LIMIT/WINDOW [burst]", for example
// "POST /suggestion 30/1h 5; POST /documents 120/1m".
func ParseRules(spec string) ([]Rule, error) {
	var rules []Rule
	for _, entry := range strings.Split(spec, ";") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("rate limit rule %q: want METHOD /suffix LIMIT/WINDOW [burst]", strings.TrimSpace(entry))
		}
		limitStr, windowStr, ok := strings.Cut(fields[2], "/")
		if !ok {
			return nil, fmt.Errorf("rate limit rule %q: missing window", strings.TrimSpace(entry))
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return nil, fmt.Errorf("rate limit rule %q: invalid limit %q", strings.TrimSpace(entry), limitStr)
		}
		window, err := time.ParseDuration(windowStr)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rate limit rule %q: invalid window %q", strings.TrimSpace(entry), windowStr)
		}
		rule := Rule{Method: strings.ToUpper(fields[0]), Suffix: fields[1], Limit: limit, Window: window}
		if len(fields) == 4 {
			if rule.Burst, err = strconv.Atoi(fields[3]); err != nil || rule.Burst < 0 {
				return nil, fmt.Errorf("rate limit rule %q: invalid burst %q", strings.TrimSpace(entry), fields[3])
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// envReader reads prefixed variables and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s=%q: %w", envPrefix, key, value, err)
	}
}

func (e *envReader) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}
