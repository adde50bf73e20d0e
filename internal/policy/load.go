package policy

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// fileConfig is the gohcl decoding target for a policy file. Attributes
// missing from the file keep whatever value the struct held before
// decoding, so it is seeded with the defaults.
type fileConfig struct {
	Formatter *formatterBlock `hcl:"formatter,block"`
	Dirs      []string        `hcl:"dirs,optional"`
	Ignore    []string        `hcl:"ignore,optional"`
	Marker    string          `hcl:"marker,optional"`
	Jobs      int             `hcl:"jobs,optional"`
}

type formatterBlock struct {
	Command string   `hcl:"command"`
	Args    []string `hcl:"args,optional"`
}

// Load parses an HCL policy file. Settings the file leaves out keep their
// default values.
func Load(path string) (Policy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes policy source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (Policy, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return Policy{}, fmt.Errorf("parsing HCL: %s", diags.Error())
	}

	def := Default()
	cfg := seed(def)
	if diags := gohcl.DecodeBody(file.Body, evalContext(def), &cfg); diags.HasErrors() {
		return Policy{}, fmt.Errorf("decoding policy: %s", diags.Error())
	}

	p := cfg.policy(def)
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// Diagnose reports every problem in policy source. Syntax and decoding
// problems carry their source range; validation problems point at the end
// of the file.
func Diagnose(src []byte, filename string) hcl.Diagnostics {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return diags
	}

	def := Default()
	cfg := seed(def)
	diags = append(diags, gohcl.DecodeBody(file.Body, evalContext(def), &cfg)...)
	if diags.HasErrors() {
		return diags
	}

	if err := cfg.policy(def).Validate(); err != nil {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid policy",
			Detail:   err.Error(),
			Subject:  file.Body.MissingItemRange().Ptr(),
		})
	}
	return diags
}

func seed(def Policy) fileConfig {
	return fileConfig{
		Dirs:   def.Dirs,
		Ignore: def.Ignore,
		Marker: def.Marker,
		Jobs:   def.Jobs,
	}
}

func (cfg fileConfig) policy(def Policy) Policy {
	p := Policy{
		Dirs:      cfg.Dirs,
		Ignore:    cfg.Ignore,
		Marker:    cfg.Marker,
		Formatter: def.Formatter,
		Jobs:      cfg.Jobs,
	}
	if cfg.Formatter != nil {
		p.Formatter = Formatter{Command: cfg.Formatter.Command, Args: cfg.Formatter.Args}
	}
	return p
}

// evalContext exposes the built-in policy as the "default" variable so a
// file can extend it instead of repeating it, e.g.
//
//	ignore = concat(default.ignore, ["extra.S"])
func evalContext(def Policy) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"default": cty.ObjectVal(map[string]cty.Value{
				"dirs":      stringList(def.Dirs),
				"ignore":    stringList(def.Ignore),
				"marker":    cty.StringVal(def.Marker),
				"formatter": cty.StringVal(def.Formatter.Command),
			}),
		},
		Functions: map[string]function.Function{
			"concat":   stdlib.ConcatFunc,
			"distinct": stdlib.DistinctFunc,
			"setunion": stdlib.SetUnionFunc,
		},
	}
}

func stringList(items []string) cty.Value {
	if len(items) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(items))
	for i, item := range items {
		vals[i] = cty.StringVal(item)
	}
	return cty.ListVal(vals)
}
