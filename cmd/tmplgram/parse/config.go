package parse

import (
	"bytes"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/walteh/tmplgram/pkg/grammar"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// GrammarConfig describes a grammar in a config file. HCL is the primary
// format, YAML the fallback.
type GrammarConfig struct {
	Start     string           `hcl:"start,optional" yaml:"start,omitempty"`
	Terminals []*TerminalBlock `hcl:"terminal,block" yaml:"terminals"`
	Rules     []*RuleBlock     `hcl:"rule,block" yaml:"rules"`
	Ignore    []string         `hcl:"ignore,optional" yaml:"ignore,omitempty"`
}

// TerminalBlock declares one terminal. Exactly one of literal, pattern, or
// object must be set.
type TerminalBlock struct {
	Name     string  `hcl:"name,label" yaml:"name"`
	Literal  *string `hcl:"literal,optional" yaml:"literal,omitempty"`
	Pattern  *string `hcl:"pattern,optional" yaml:"pattern,omitempty"`
	Object   bool    `hcl:"object,optional" yaml:"object,omitempty"`
	Priority int     `hcl:"priority,optional" yaml:"priority,omitempty"`
	Filter   bool    `hcl:"filter,optional" yaml:"filter,omitempty"`
}

// RuleBlock declares one production. Repeated blocks with the same name are
// alternatives of the same nonterminal.
type RuleBlock struct {
	Name       string   `hcl:"name,label" yaml:"name"`
	Seq        []string `hcl:"seq,attr" yaml:"seq"`
	Alias      string   `hcl:"alias,optional" yaml:"alias,omitempty"`
	Collapse   bool     `hcl:"collapse,optional" yaml:"collapse,omitempty"`
	KeepTokens bool     `hcl:"keep_tokens,optional" yaml:"keep_tokens,omitempty"`
}

// LoadGrammarConfig reads a grammar description from a YAML or HCL file.
func LoadGrammarConfig(fs afero.Fs, path string) (*GrammarConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading grammar file: %w", err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		var cfg GrammarConfig
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
		return &cfg, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg GrammarConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return &cfg, nil
}

// Compile turns the config into a grammar. Symbols in rule sequences follow
// one convention: double-quoted strings are inline literals, all-uppercase
// names reference terminals, anything else references a nonterminal.
func (cfg *GrammarConfig) Compile() (*grammar.Grammar, error) {
	b := grammar.NewBuilder()

	for _, tb := range cfg.Terminals {
		var opts []grammar.TermOption
		if tb.Priority != 0 {
			opts = append(opts, grammar.WithPriority(tb.Priority))
		}
		if tb.Filter {
			opts = append(opts, grammar.WithFilterOut())
		}
		switch {
		case tb.Object:
			if tb.Literal != nil || tb.Pattern != nil {
				return nil, errors.Errorf("terminal %s: object excludes literal and pattern", tb.Name)
			}
			// Typed object terminals need a Go type check registered, which
			// a config file cannot express.
			if tb.Name != grammar.ObjectTerminal {
				return nil, errors.Errorf("terminal %s: only the %s terminal can be declared in a config; qualified placeholders require programmatic type checks", tb.Name, grammar.ObjectTerminal)
			}
			b.Object()
		case tb.Literal != nil && tb.Pattern == nil:
			b.Literal(tb.Name, *tb.Literal, opts...)
		case tb.Pattern != nil && tb.Literal == nil:
			b.Regex(tb.Name, *tb.Pattern, opts...)
		default:
			return nil, errors.Errorf("terminal %s: exactly one of literal, pattern, or object required", tb.Name)
		}
	}

	b.Ignore(cfg.Ignore...)

	for _, rb := range cfg.Rules {
		symbols := make([]grammar.Symbol, 0, len(rb.Seq))
		for _, s := range rb.Seq {
			symbols = append(symbols, symbolFor(b, s))
		}
		var opts []grammar.RuleOption
		if rb.Alias != "" {
			opts = append(opts, grammar.WithAlias(rb.Alias))
		}
		if rb.Collapse {
			opts = append(opts, grammar.WithCollapse())
		}
		if rb.KeepTokens {
			opts = append(opts, grammar.WithKeepAllTokens())
		}
		b.Rule(rb.Name, symbols, opts...)
	}

	g, err := b.Build()
	if err != nil {
		return nil, errors.Errorf("compiling grammar config: %w", err)
	}
	return g, nil
}

// StartRule returns the configured start nonterminal, defaulting to "start".
func (cfg *GrammarConfig) StartRule() string {
	if cfg.Start != "" {
		return cfg.Start
	}
	return "start"
}

func symbolFor(b *grammar.Builder, s string) grammar.Symbol {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return b.Lit(s[1 : len(s)-1])
	}
	if s == strings.ToUpper(s) && s != strings.ToLower(s) {
		return grammar.Term(s)
	}
	return grammar.NonTerm(s)
}
