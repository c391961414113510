package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = "reportline.yml"

// Config models reportline.yml.
type Config struct {
	Actor     string  `yaml:"actor"`
	Catalog   Catalog `yaml:"catalog"`
	Checklist struct {
		SystemActor        string   `yaml:"system_actor"`
		DefaultReviewTeams []string `yaml:"default_review_teams"`
		SeedEvent          bool     `yaml:"seed_event"`
	} `yaml:"checklist"`
	Intake struct {
		DueInDays int `yaml:"due_in_days"`
	} `yaml:"intake"`
	Database struct {
		// Path is optional; requests live in memory when empty.
		Path string `yaml:"path"`
	} `yaml:"database"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

// Catalog is the static client/product/team reference data used by intake.
type Catalog struct {
	Clients        []string            `yaml:"clients"`
	ClientProducts map[string][]string `yaml:"client_products"`
	ProductTeams   map[string][]string `yaml:"product_teams"`
	AlwaysTeams    []string            `yaml:"always_teams"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; write one with rl config init: %w", path, err)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Actor) == "" {
		return fmt.Errorf("config.actor is required")
	}
	if strings.TrimSpace(c.Checklist.SystemActor) == "" {
		return fmt.Errorf("config.checklist.system_actor is required")
	}
	if len(c.Catalog.Clients) == 0 {
		return fmt.Errorf("config.catalog.clients is required")
	}
	clients := map[string]bool{}
	for _, client := range c.Catalog.Clients {
		if strings.TrimSpace(client) == "" {
			return fmt.Errorf("config.catalog.clients contains an empty client")
		}
		if clients[client] {
			return fmt.Errorf("client %s listed twice", client)
		}
		clients[client] = true
	}
	for client, products := range c.Catalog.ClientProducts {
		if !clients[client] {
			return fmt.Errorf("client_products references unknown client %s", client)
		}
		for _, product := range products {
			if product == "" {
				return fmt.Errorf("client %s has empty product id", client)
			}
			if _, ok := c.Catalog.ProductTeams[product]; !ok {
				return fmt.Errorf("product %s of client %s has no team mapping", product, client)
			}
		}
	}
	for product, teams := range c.Catalog.ProductTeams {
		for _, team := range teams {
			if strings.TrimSpace(team) == "" {
				return fmt.Errorf("product %s maps to an empty team", product)
			}
		}
	}
	for _, team := range c.Catalog.AlwaysTeams {
		if strings.TrimSpace(team) == "" {
			return fmt.Errorf("config.catalog.always_teams contains an empty team")
		}
	}
	if len(c.Checklist.DefaultReviewTeams) == 0 {
		return fmt.Errorf("config.checklist.default_review_teams is required")
	}
	for _, team := range c.Checklist.DefaultReviewTeams {
		if strings.TrimSpace(team) == "" {
			return fmt.Errorf("config.checklist.default_review_teams contains an empty team")
		}
	}
	if c.Intake.DueInDays < 0 {
		return fmt.Errorf("config.intake.due_in_days must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Sections left
// out take their default values; a catalog is replaced as a whole.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults(Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults(def *Config) {
	if c.Actor == "" {
		c.Actor = def.Actor
	}
	if len(c.Catalog.Clients) == 0 && len(c.Catalog.ClientProducts) == 0 && len(c.Catalog.ProductTeams) == 0 {
		always := c.Catalog.AlwaysTeams
		c.Catalog = def.Catalog
		if len(always) > 0 {
			c.Catalog.AlwaysTeams = always
		}
	}
	if c.Checklist.SystemActor == "" {
		c.Checklist.SystemActor = def.Checklist.SystemActor
	}
	if len(c.Checklist.DefaultReviewTeams) == 0 {
		c.Checklist.DefaultReviewTeams = def.Checklist.DefaultReviewTeams
	}
	if c.Intake.DueInDays == 0 {
		c.Intake.DueInDays = def.Intake.DueInDays
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = def.Server.BasePath
	}
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config back to YAML.
func (c *Config) YAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const defaultTemplate = `actor: user1

catalog:
  clients: [Client 1, Client 2, Client 3, Client 4, Client 5]
  client_products:
    Client 1: [Product A, Product B, Product C]
    Client 2: [Product D, Product E]
    Client 3: [Product E, Product F]
    Client 4: [Product F, Product G]
    Client 5: [Product A, Product D, Product G]
  product_teams:
    Product A: [Fund Finance GPC]
    Product B: [LMG Trading Team]
    Product C: [Fund Finance Infra]
    Product D: [Fund Finance RE]
    Product E: [Fund Finance SI/LMG]
    Product F: [Fund Finance Infra, Fund Finance SI/LMG]
    Product G: [Fund Finance RE]
  always_teams: [Fee Billing]

checklist:
  system_actor: system
  default_review_teams: [Fund Finance RE, Fund Finance SI/LMG, Fund Finance Infra]
  seed_event: false

intake:
  due_in_days: 14

database:
  path: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
