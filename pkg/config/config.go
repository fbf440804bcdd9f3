// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Executor ExecutorConfig `yaml:"executor"`
	Gate     GateSection    `yaml:"gate"`
	Chains   []ChainConfig  `yaml:"chains"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	JWTSecret    string        `yaml:"jwt_secret"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
	RateBurst    int           `yaml:"rate_burst"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig points at the snapshot store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the shared daily spend tracker. An empty Addr
// selects the in-memory tracker.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ExecutorConfig selects the execution backend. Mode is "static" for
// dry runs or "evm" for real chain submission.
type ExecutorConfig struct {
	Mode          string `yaml:"mode"`
	PrivateKeyEnv string `yaml:"private_key_env"`
	GasLimit      uint64 `yaml:"gas_limit"`
}

// ChainConfig describes one EVM backend.
type ChainConfig struct {
	Name    string `yaml:"name"`
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`
}

// GateSection is the YAML shape of the gate's startup configuration.
type GateSection struct {
	Name             string                    `yaml:"name"`
	Owner            string                    `yaml:"owner"`
	DefaultThreshold contracts.ThresholdConfig `yaml:"default_threshold"`
	SupportedChains  []string                  `yaml:"supported_chains"`
	RequestExpiry    time.Duration             `yaml:"request_expiry"`
	Roles            []RoleSeed                `yaml:"roles"`
	Policies         []PolicySpec              `yaml:"policies"`
}

// RoleSeed grants one role at startup.
type RoleSeed struct {
	Principal string `yaml:"principal"`
	Role      string `yaml:"role"`
}

// PolicySpec is the YAML shape of one policy.
type PolicySpec struct {
	Name       string          `yaml:"name"`
	Priority   uint32          `yaml:"priority"`
	Conditions []ConditionSpec `yaml:"conditions"`
	Action     ActionSpec      `yaml:"action"`
}

// ConditionSpec is the YAML shape of one policy condition.
type ConditionSpec struct {
	Kind   string   `yaml:"kind"`
	Limit  uint64   `yaml:"limit,omitempty"`
	Values []string `yaml:"values,omitempty"`
	Start  uint64   `yaml:"start,omitempty"`
	End    uint64   `yaml:"end,omitempty"`
	Expr   string   `yaml:"expr,omitempty"`
}

// ActionSpec is the YAML shape of a policy's outcome.
type ActionSpec struct {
	Kind      string   `yaml:"kind"`
	Required  uint8    `yaml:"required,omitempty"`
	FromRoles []string `yaml:"from_roles,omitempty"`
}

// Load reads the config file at path and applies environment
// overrides. A missing file is an error; use Default for a file-less
// setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration before file and
// environment are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			RateLimitRPS: 10,
			RateBurst:    20,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{Path: "vaultgate.db"},
		Executor: ExecutorConfig{Mode: "static", PrivateKeyEnv: "VAULTGATE_PRIVATE_KEY", GasLimit: 100_000},
		Gate: GateSection{
			Name:             "vaultgate",
			DefaultThreshold: contracts.ThresholdConfig{Required: 2, Total: 3},
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VAULTGATE_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("VAULTGATE_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("VAULTGATE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("VAULTGATE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("VAULTGATE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("VAULTGATE_OWNER"); v != "" {
		c.Gate.Owner = v
	}
}

func (c *Config) validate() error {
	if c.Gate.Owner == "" {
		return fmt.Errorf("gate.owner is required")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required (or set VAULTGATE_JWT_SECRET)")
	}
	switch c.Executor.Mode {
	case "static", "evm":
	default:
		return fmt.Errorf("executor.mode must be \"static\" or \"evm\", got %q", c.Executor.Mode)
	}
	if c.Executor.Mode == "evm" && len(c.Chains) == 0 {
		return fmt.Errorf("executor.mode \"evm\" requires at least one chain")
	}
	for _, p := range c.Gate.Policies {
		if _, err := p.ToPolicy(); err != nil {
			return err
		}
	}
	for _, r := range c.Gate.Roles {
		if _, err := parseRole(r.Role); err != nil {
			return err
		}
	}
	return nil
}

// ToGateConfig converts the gate section into the engine's startup
// configuration. Errors surface misspelled condition or role names
// before the gate ever sees them.
func (g GateSection) ToGateConfig() (contracts.GateConfig, error) {
	out := contracts.GateConfig{
		Name:             g.Name,
		DefaultThreshold: g.DefaultThreshold,
		SupportedChains:  g.SupportedChains,
	}
	for _, spec := range g.Policies {
		p, err := spec.ToPolicy()
		if err != nil {
			return contracts.GateConfig{}, err
		}
		out.Policies = append(out.Policies, p)
	}
	for _, seed := range g.Roles {
		role, err := parseRole(seed.Role)
		if err != nil {
			return contracts.GateConfig{}, err
		}
		out.Roles = append(out.Roles, contracts.RoleAssignment{
			Principal: contracts.Principal(seed.Principal),
			Role:      role,
		})
	}
	return out, nil
}

// ToPolicy converts a policy spec into an engine policy.
func (p PolicySpec) ToPolicy() (contracts.Policy, error) {
	out := contracts.Policy{
		Name:     p.Name,
		Priority: p.Priority,
	}
	for _, c := range p.Conditions {
		cond, err := c.toCondition()
		if err != nil {
			return contracts.Policy{}, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		out.Conditions = append(out.Conditions, cond)
	}
	action, err := p.Action.toAction()
	if err != nil {
		return contracts.Policy{}, fmt.Errorf("policy %q: %w", p.Name, err)
	}
	out.Action = action
	return out, nil
}

func (c ConditionSpec) toCondition() (contracts.Condition, error) {
	kind := contracts.ConditionKind(c.Kind)
	switch kind {
	case contracts.CondMaxAmount, contracts.CondMinAmount,
		contracts.CondDailyLimit, contracts.CondAllowedTokens,
		contracts.CondAllowedChains, contracts.CondTimeWindow,
		contracts.CondCooldown, contracts.CondExpression:
	default:
		return contracts.Condition{}, fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return contracts.Condition{
		Kind:   kind,
		Limit:  c.Limit,
		Values: c.Values,
		Start:  c.Start,
		End:    c.End,
		Expr:   c.Expr,
	}, nil
}

func (a ActionSpec) toAction() (contracts.PolicyAction, error) {
	kind := contracts.PolicyActionKind(a.Kind)
	switch kind {
	case contracts.PolicyAllow, contracts.PolicyDeny:
		return contracts.PolicyAction{Kind: kind}, nil
	case contracts.PolicyRequireThreshold:
		roles := make([]contracts.Role, 0, len(a.FromRoles))
		for _, r := range a.FromRoles {
			role, err := parseRole(r)
			if err != nil {
				return contracts.PolicyAction{}, err
			}
			roles = append(roles, role)
		}
		return contracts.PolicyAction{Kind: kind, Required: a.Required, FromRoles: roles}, nil
	default:
		return contracts.PolicyAction{}, fmt.Errorf("unknown policy action kind %q", a.Kind)
	}
}

func parseRole(s string) (contracts.Role, error) {
	switch contracts.Role(s) {
	case contracts.RoleOwner, contracts.RoleOperator, contracts.RoleViewer:
		return contracts.Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}
