package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultDecimals = 2

var monitorIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// knownAuthTypes are the credential strategies a monitor may select.
var knownAuthTypes = map[string]bool{
	"bearer":        true,
	"basic":         true,
	"apikey":        true,
	"cookie":        true,
	"authorization": true,
}

// MonitorConfig is a validated monitor definition.
//
// Field names follow the JSON accepted in MONITORS_CONFIG, so the same
// camelCase keys (displayUnit, balanceField, ...) are used in YAML files.
type MonitorConfig struct {
	ID           string
	Name         string
	URL          string
	Auth         *AuthConfig
	DisplayUnit  string
	Total        *float64
	BalanceField string
	ExpiryField  string
	TotalField   string
	Reverse      bool
	Decimals     int
	Timeout      time.Duration
}

// AuthConfig selects one credential strategy plus optional raw headers.
// Values support environment variable substitution.
type AuthConfig struct {
	Type          string
	Token         string
	Username      string
	Password      string
	APIKey        string
	Cookie        string
	Authorization string
	Headers       map[string]string
}

// AddMonitorsJSON appends the monitors in a JSON array, validated the same
// way as the monitors list of a YAML file.
func (c *Config) AddMonitorsJSON(data []byte) error {
	var entries []any
	// JSON is valid YAML, so one decoder serves both sources
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("monitors must be a JSON array: %w", err)
	}
	for i, entry := range entries {
		c.addMonitor(fmt.Sprintf("%s[%d]", MonitorsEnv, i), entry)
	}
	return nil
}

// addMonitor validates one raw entry and appends it, or records why it was
// skipped. Invalid optional fields are dropped rather than rejecting the entry.
func (c *Config) addMonitor(label string, entry any) {
	fields, ok := entry.(map[string]any)
	if !ok {
		c.warnf("%s: monitor must be an object, skipped", label)
		return
	}

	for _, required := range []string{"id", "name", "url"} {
		if !truthy(fields[required]) {
			c.warnf("%s: missing required field %q, skipped", label, required)
			return
		}
	}

	m := MonitorConfig{
		ID:       scalarString(fields["id"]),
		Name:     scalarString(fields["name"]),
		URL:      scalarString(fields["url"]),
		Decimals: defaultDecimals,
	}
	label = fmt.Sprintf("%s (%s)", label, m.ID)

	if !monitorIDPattern.MatchString(m.ID) {
		c.warnf("%s: id must contain only letters, digits, '_' or '-', skipped", label)
		return
	}
	for _, existing := range c.Monitors {
		if existing.ID == m.ID {
			c.warnf("%s: duplicate id, skipped", label)
			return
		}
	}

	expanded, err := expandEnvVars(m.URL)
	if err != nil {
		c.warnf("%s: url: %v, skipped", label, err)
		return
	}
	if err := checkHTTPURL(expanded); err != nil {
		c.warnf("%s: %v, skipped", label, err)
		return
	}
	m.URL = expanded

	if v, present := fields["auth"]; present && v != nil {
		auth, err := c.parseAuth(label, v)
		if err != nil {
			c.warnf("%s: auth: %v, skipped", label, err)
			return
		}
		m.Auth = auth
	}

	if truthy(fields["total"]) {
		if total, isNum := number(fields["total"]); isNum && total > 0 && !math.IsInf(total, 0) {
			m.Total = &total
		} else {
			c.warnf("%s: total must be a positive number, ignored", label)
		}
	}

	if truthy(fields["displayUnit"]) {
		m.DisplayUnit = scalarString(fields["displayUnit"])
	}
	if truthy(fields["balanceField"]) {
		m.BalanceField = scalarString(fields["balanceField"])
	}
	if truthy(fields["expiryField"]) {
		m.ExpiryField = scalarString(fields["expiryField"])
	}
	if truthy(fields["totalField"]) {
		m.TotalField = scalarString(fields["totalField"])
	}
	m.Reverse = truthy(fields["reverse"])

	if v, present := fields["decimals"]; present {
		d, isNum := number(v)
		switch {
		case !isNum:
			// non-numeric decimals silently fall back to the default
		case d < 0 || d != math.Trunc(d) || d > 18:
			c.warnf("%s: decimals must be a whole number between 0 and 18, using %d", label, defaultDecimals)
		default:
			m.Decimals = int(d)
		}
	}

	if v, present := fields["timeout"]; present && v != nil {
		d, err := time.ParseDuration(scalarString(v))
		if err != nil || d <= 0 {
			c.warnf("%s: timeout must be a positive duration like \"5s\", ignored", label)
		} else {
			m.Timeout = d
		}
	}

	c.Monitors = append(c.Monitors, m)
}

// parseAuth converts a raw auth block. An auth value that is not an object,
// or an unknown type, is dropped with a warning. Environment expansion
// failures are returned so the monitor is skipped rather than sent with a
// literal placeholder.
func (c *Config) parseAuth(label string, v any) (*AuthConfig, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		c.warnf("%s: auth must be an object, ignored", label)
		return nil, nil
	}

	auth := &AuthConfig{
		Type:          scalarString(fields["type"]),
		Token:         scalarString(fields["token"]),
		Username:      scalarString(fields["username"]),
		Password:      scalarString(fields["password"]),
		APIKey:        scalarString(fields["apiKey"]),
		Cookie:        scalarString(fields["cookie"]),
		Authorization: scalarString(fields["authorization"]),
	}

	if auth.Type != "" && !knownAuthTypes[auth.Type] {
		c.warnf("%s: unknown auth type %q, no credentials will be sent", label, auth.Type)
		auth.Type = ""
	}

	for _, target := range []*string{&auth.Token, &auth.Username, &auth.Password, &auth.APIKey, &auth.Cookie, &auth.Authorization} {
		expanded, err := expandEnvVars(*target)
		if err != nil {
			return nil, err
		}
		*target = expanded
	}

	if raw, ok := fields["headers"].(map[string]any); ok && len(raw) > 0 {
		auth.Headers = make(map[string]string, len(raw))
		for k, hv := range raw {
			expanded, err := expandEnvVars(scalarString(hv))
			if err != nil {
				return nil, fmt.Errorf("headers[%s]: %w", k, err)
			}
			auth.Headers[k] = expanded
		}
	}

	if auth.Type == "" && len(auth.Headers) == 0 {
		return nil, nil
	}
	return auth, nil
}

// truthy mirrors the loose truthiness of the JSON config source: nil,
// false, 0 and "" are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if n, ok := number(v); ok {
			return n != 0 && !math.IsNaN(n)
		}
		return true
	}
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// scalarString renders a scalar as a string. Non-scalars become "".
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		if n, ok := number(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return ""
	}
}
