// Package load reads template and scenario definitions produced by the
// authoring layer from YAML files and turns them into forge values.
//
// A definition file groups templates by kind and may declare scenarios and
// schema descriptors:
//
//	schema:
//	  Blog:
//	    group: blog
//	    id: {attr: id, type: int}
//	    attrs: [name]
//	  Post:
//	    group: blog
//	    id: {attr: id, type: int}
//	    attrs: [title, content]
//	    relations: {blog_id: Blog}
//	kinds:
//	  Blog:
//	    templates:
//	      example_blog:
//	        attrs:
//	          name: Example name
//	  Post:
//	    templates:
//	      example_post:
//	        create_op: import_post
//	        virtual: [review_hint]
//	        attrs:
//	          title: A post title
//	          blog_id: example_blog
//	scenarios:
//	  base:
//	    overrides:
//	      - ref: Post.example_post
//	        attrs: {title: Base Post}
//	  extended:
//	    extends: [base]
//	    overrides:
//	      - ref: Post.example_post
//	        attrs: {title: Extended Post}
//
// Attribute order in the file is preserved. Two local tags mark non-literal
// values: !ref forces an explicit template reference ("Kind.name" or a bare
// name), and !seq declares a sequence generator with a printf format.
package load

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/syssam/forge"
	"github.com/syssam/forge/schema"
)

// Definitions is the parsed content of one or more definition files.
type Definitions struct {
	Kinds     []*schema.Kind
	Templates []*forge.Template
	Scenarios []*forge.Scenario
}

// Provider returns a schema provider over the file-declared kinds.
func (d *Definitions) Provider() *schema.MapProvider {
	return schema.NewMapProvider(d.Kinds...)
}

// Register loads everything into the store: templates first (one atomic
// batch), then scenarios.
func (d *Definitions) Register(store *forge.Store) error {
	if len(d.Templates) > 0 {
		if err := store.Register(d.Templates...); err != nil {
			return err
		}
	}
	store.RegisterScenarios(d.Scenarios...)
	return nil
}

// File parses a single definition file.
func File(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load: %s: %w", path, err)
	}
	return defs, nil
}

// Directory parses every .yaml/.yml file in dir (non-recursive), in lexical
// file order, and merges the results.
func Directory(dir string) (*Definitions, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := &Definitions{}
	for _, name := range names {
		defs, err := File(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out.Kinds = append(out.Kinds, defs.Kinds...)
		out.Templates = append(out.Templates, defs.Templates...)
		out.Scenarios = append(out.Scenarios, defs.Scenarios...)
	}
	return out, nil
}

// Discovery returns a lazy discovery hook over a definition directory. The
// directory is parsed once, on the first kind the store asks about; the
// hook then serves each kind's templates from the parsed set. Scenarios are
// handed back on the first invocation only.
func Discovery(dir string) forge.DiscoverFunc {
	var (
		once    sync.Once
		byKind  map[string][]*forge.Template
		scens   []*forge.Scenario
		loadErr error
		first   = true
		mu      sync.Mutex
	)
	return func(kind string) ([]*forge.Template, []*forge.Scenario, error) {
		once.Do(func() {
			defs, err := Directory(dir)
			if err != nil {
				loadErr = err
				return
			}
			byKind = make(map[string][]*forge.Template)
			for _, t := range defs.Templates {
				byKind[t.Kind] = append(byKind[t.Kind], t)
			}
			scens = defs.Scenarios
		})
		if loadErr != nil {
			return nil, nil, loadErr
		}
		mu.Lock()
		defer mu.Unlock()
		var scenarios []*forge.Scenario
		if first {
			first = false
			scenarios = scens
		}
		return byKind[kind], scenarios, nil
	}
}

// document mirrors the top-level file structure.
type document struct {
	Schema      map[string]*kindSchemaDoc `yaml:"schema"`
	Kinds       map[string]*kindDoc       `yaml:"kinds"`
	Scenarios   map[string]*scenarioDoc   `yaml:"scenarios"`
	schemaOrder []string
	kindOrder   []string
	scenOrder   []string
}

type kindSchemaDoc struct {
	Group        string            `yaml:"group"`
	Table        string            `yaml:"table"`
	ID           *idDoc            `yaml:"id"`
	PartitionKey string            `yaml:"partition_key"`
	Timestamps   []string          `yaml:"timestamps"`
	Attrs        []string          `yaml:"attrs"`
	Relations    map[string]string `yaml:"relations"`
}

type idDoc struct {
	Attr string `yaml:"attr"`
	Type string `yaml:"type"`
}

type kindDoc struct {
	Templates map[string]*templateDoc `yaml:"templates"`
	tmplOrder []string
}

type templateDoc struct {
	Attrs    yaml.Node `yaml:"attrs"`
	Virtual  []string  `yaml:"virtual"`
	CreateOp string    `yaml:"create_op"`
}

type scenarioDoc struct {
	Extends   []string       `yaml:"extends"`
	Overrides []*overrideDoc `yaml:"overrides"`
}

type overrideDoc struct {
	Ref   string    `yaml:"ref"`
	Attrs yaml.Node `yaml:"attrs"`
}

// Parse parses one definition document.
func Parse(data []byte) (*Definitions, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	doc := &document{}
	if err := decodeDocument(&root, doc); err != nil {
		return nil, err
	}
	out := &Definitions{}
	for _, name := range doc.schemaOrder {
		out.Kinds = append(out.Kinds, buildKind(name, doc.Schema[name]))
	}
	for _, kind := range doc.kindOrder {
		kd := doc.Kinds[kind]
		for _, name := range kd.tmplOrder {
			td := kd.Templates[name]
			attrs, err := decodeAttrs(&td.Attrs)
			if err != nil {
				return nil, fmt.Errorf("template %s.%s: %w", kind, name, err)
			}
			out.Templates = append(out.Templates, &forge.Template{
				Kind:     kind,
				Name:     name,
				Attrs:    attrs,
				Virtual:  td.Virtual,
				CreateOp: td.CreateOp,
			})
		}
	}
	for _, name := range doc.scenOrder {
		sd := doc.Scenarios[name]
		sc := &forge.Scenario{Name: name, Extends: sd.Extends}
		for _, od := range sd.Overrides {
			attrs, err := decodeAttrs(&od.Attrs)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", name, err)
			}
			m := make(map[string]any, len(attrs))
			for _, a := range attrs {
				m[a.Key] = a.Value
			}
			sc.Overrides = append(sc.Overrides, forge.ScenarioOverride{
				Ref:   forge.ParseRef(od.Ref),
				Attrs: m,
			})
		}
		out.Scenarios = append(out.Scenarios, sc)
	}
	return out, nil
}

// decodeDocument decodes the top level by hand to keep the declaration
// order of kinds, templates and scenarios.
func decodeDocument(root *yaml.Node, doc *document) error {
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	if root.Kind == 0 || root.Tag == "!!null" {
		// Empty document.
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("load: top level must be a mapping, got %v", root.Tag)
	}
	doc.Schema = make(map[string]*kindSchemaDoc)
	doc.Kinds = make(map[string]*kindDoc)
	doc.Scenarios = make(map[string]*scenarioDoc)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "schema":
			if err := eachMapping(value, func(name string, node *yaml.Node) error {
				kd := &kindSchemaDoc{}
				if err := node.Decode(kd); err != nil {
					return err
				}
				doc.Schema[name] = kd
				doc.schemaOrder = append(doc.schemaOrder, name)
				return nil
			}); err != nil {
				return err
			}
		case "kinds":
			if err := eachMapping(value, func(kind string, node *yaml.Node) error {
				kd := &kindDoc{Templates: make(map[string]*templateDoc)}
				if err := eachMapping(node, func(section string, n *yaml.Node) error {
					if section != "templates" {
						return nil
					}
					return eachMapping(n, func(name string, tn *yaml.Node) error {
						td := &templateDoc{}
						if err := tn.Decode(td); err != nil {
							return err
						}
						kd.Templates[name] = td
						kd.tmplOrder = append(kd.tmplOrder, name)
						return nil
					})
				}); err != nil {
					return err
				}
				doc.Kinds[kind] = kd
				doc.kindOrder = append(doc.kindOrder, kind)
				return nil
			}); err != nil {
				return err
			}
		case "scenarios":
			if err := eachMapping(value, func(name string, node *yaml.Node) error {
				sd := &scenarioDoc{}
				if err := node.Decode(sd); err != nil {
					return err
				}
				doc.Scenarios[name] = sd
				doc.scenOrder = append(doc.scenOrder, name)
				return nil
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildKind turns a schema document entry into a descriptor.
func buildKind(name string, kd *kindSchemaDoc) *schema.Kind {
	opts := []schema.Option{
		schema.WithGroup(kd.Group),
		schema.WithAttrs(kd.Attrs...),
		schema.WithTimestamps(kd.Timestamps...),
	}
	if kd.Table != "" {
		opts = append(opts, schema.WithTable(kd.Table))
	}
	if kd.ID != nil {
		typ := schema.StringID
		if kd.ID.Type == "int" {
			typ = schema.IntID
		}
		opts = append(opts, schema.WithID(kd.ID.Attr, typ))
	}
	if kd.PartitionKey != "" {
		opts = append(opts, schema.WithPartitionKey(kd.PartitionKey))
	}
	attrs := make([]string, 0, len(kd.Relations))
	for attr := range kd.Relations {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		opts = append(opts, schema.WithRelation(attr, kd.Relations[attr]))
	}
	return schema.New(name, opts...)
}

func eachMapping(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("load: expected a mapping, got %v", node.Tag)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// decodeAttrs decodes an attrs mapping into an ordered attribute list.
func decodeAttrs(node *yaml.Node) ([]forge.Attr, error) {
	var attrs []forge.Attr
	err := eachMapping(node, func(key string, value *yaml.Node) error {
		v, err := decodeValue(value)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		attrs = append(attrs, forge.Attr{Key: key, Value: v})
		return nil
	})
	return attrs, err
}

// decodeValue decodes one attribute value, honoring the !ref and !seq local
// tags.
func decodeValue(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!ref":
		return forge.ParseRef(strings.TrimSpace(node.Value)), nil
	case "!seq":
		return forge.Sequence(node.Value), nil
	}
	switch node.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := decodeValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[node.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(node.Content))
		for _, n := range node.Content {
			v, err := decodeValue(n)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
