// Package registry loads the entity schemas that describe each import target.
package registry

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
)

//go:embed entities.yaml
var builtinEntities []byte

type schemaFile struct {
	Entities []model.EntitySchema `yaml:"entities"`
}

// Builtin returns the registry compiled into the binary.
func Builtin() (*model.SchemaRegistry, error) {
	entities, err := parseSchema(builtinEntities)
	if err != nil {
		return nil, eris.Wrap(err, "registry: parse builtin entities")
	}
	return model.NewSchemaRegistry(entities), nil
}

// Load returns the builtin registry extended by the YAML file at path.
// Entities in the file replace builtin entities of the same name. An empty
// path returns the builtin registry.
func Load(path string) (*model.SchemaRegistry, error) {
	entities, err := parseSchema(builtinEntities)
	if err != nil {
		return nil, eris.Wrap(err, "registry: parse builtin entities")
	}
	if path == "" {
		return model.NewSchemaRegistry(entities), nil
	}

	extra, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return model.NewSchemaRegistry(append(entities, extra...)), nil
}

// LoadFile reads entity schemas from a YAML file.
func LoadFile(path string) ([]model.EntitySchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read schema file")
	}
	entities, err := parseSchema(data)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	return entities, nil
}

func parseSchema(data []byte) ([]model.EntitySchema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "unmarshal yaml")
	}
	for i, e := range f.Entities {
		if e.Name == "" {
			return nil, eris.Errorf("entity %d: missing name", i)
		}
		for j, field := range e.Fields {
			if field.Name == "" {
				return nil, eris.Errorf("entity %s field %d: missing name", e.Name, j)
			}
			kind, ok := model.ParseFieldKind(string(field.Kind))
			if !ok {
				return nil, eris.Errorf("entity %s field %s: unknown kind %q", e.Name, field.Name, field.Kind)
			}
			f.Entities[i].Fields[j].Kind = kind
		}
	}
	return f.Entities, nil
}
