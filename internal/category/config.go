package category

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllFilename is the combined stylesheet written next to the group files.
const AllFilename = "all.css"

//go:embed default.yaml
var defaultYAML []byte

// Palette holds one color per wiki theme.
type Palette struct {
	Light     string `yaml:"light"`
	Dark      string `yaml:"dark"`
	Browntown string `yaml:"browntown"`
}

// LinkColor names the CSS custom property a group's links are colored with.
type LinkColor struct {
	Key   string  `yaml:"key"`
	Value Palette `yaml:"value"`
}

// Group is one output stylesheet built from a list of wiki categories.
type Group struct {
	Name        string    `yaml:"name"`
	Ignore      bool      `yaml:"ignore"`
	CSSFilename string    `yaml:"css_filename"`
	LinkColor   LinkColor `yaml:"link_color"`
	Categories  []string  `yaml:"categories"`
}

// Config drives a generator run. Groups keep their file order.
type Config struct {
	WikiURL string  `yaml:"wiki_url"`
	Groups  []Group `yaml:"groups"`
}

// DefaultConfig returns the built-in members / free-to-play configuration.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("category: embedded config: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML config data.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields a run depends on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.WikiURL) == "" {
		return errors.New("config: wiki_url is required")
	}
	seen := map[string]bool{AllFilename: true}
	for i, g := range c.Groups {
		label := g.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		switch {
		case g.CSSFilename == "":
			return fmt.Errorf("config: group %s: css_filename is required", label)
		case g.CSSFilename != filepath.Base(g.CSSFilename):
			return fmt.Errorf("config: group %s: css_filename %q must be a bare file name", label, g.CSSFilename)
		case seen[g.CSSFilename]:
			return fmt.Errorf("config: group %s: css_filename %q is already used", label, g.CSSFilename)
		case g.LinkColor.Key == "":
			return fmt.Errorf("config: group %s: link_color.key is required", label)
		}
		seen[g.CSSFilename] = true
	}
	return nil
}

// Active returns the groups that are not ignored.
func (c Config) Active() []Group {
	out := make([]Group, 0, len(c.Groups))
	for _, g := range c.Groups {
		if !g.Ignore {
			out = append(out, g)
		}
	}
	return out
}
