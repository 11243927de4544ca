// Package gen generates typed Go references for template and scenario
// definitions, so callers address fixtures through compile-checked
// identifiers instead of string pairs:
//
//	entities, err := engine.Run(ctx, []forge.Target{{
//	    Kind: fixtures.PostExamplePost.Kind,
//	    Name: fixtures.PostExamplePost.Name,
//	}})
package gen

import (
	"fmt"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/tools/imports"

	"github.com/syssam/forge"
)

const forgePkg = "github.com/syssam/forge"

// Config holds the generation settings.
type Config struct {
	// Package is the generated package name. Required.
	Package string
	// Header replaces the default "Code generated" comment line.
	Header string
}

// Option configures the generator.
type Option func(*Config)

// WithPackage sets the generated package name.
func WithPackage(name string) Option {
	return func(c *Config) { c.Package = name }
}

// WithHeader overrides the generated-file header comment.
func WithHeader(header string) Option {
	return func(c *Config) { c.Header = header }
}

// NewConfig builds a Config with functional options applied.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Header: "Code generated by forgegen. DO NOT EDIT."}
	for _, opt := range opts {
		opt(c)
	}
	if c.Package == "" {
		return nil, fmt.Errorf("gen: package name is required")
	}
	return c, nil
}

// Generate renders typed references for the given templates and scenario
// name constants, formatted and import-fixed.
func Generate(c *Config, templates []*forge.Template, scenarios []*forge.Scenario) ([]byte, error) {
	f := jen.NewFile(c.Package)
	f.HeaderComment(c.Header)

	if len(templates) > 0 {
		defs := make([]jen.Code, 0, len(templates))
		for _, t := range templates {
			defs = append(defs, jen.Id(refIdent(t.Kind, t.Name)).Op("=").
				Qual(forgePkg, "NewRef").Call(jen.Lit(t.Kind), jen.Lit(t.Name)))
		}
		f.Comment("Template references.")
		f.Var().Defs(defs...)
	}

	if len(scenarios) > 0 {
		defs := make([]jen.Code, 0, len(scenarios))
		for _, s := range scenarios {
			defs = append(defs, jen.Id("Scenario"+inflect.Camelize(s.Name)).Op("=").Lit(s.Name))
		}
		f.Comment("Scenario names.")
		f.Const().Defs(defs...)
	}

	src := fmt.Sprintf("%#v", f)
	out, err := imports.Process("", []byte(src), nil)
	if err != nil {
		return nil, fmt.Errorf("gen: format: %w", err)
	}
	return out, nil
}

// refIdent builds the exported identifier for a template reference, e.g.
// ("Post", "example_post") becomes PostExamplePost.
func refIdent(kind, name string) string {
	return inflect.Camelize(kind) + inflect.Camelize(name)
}
