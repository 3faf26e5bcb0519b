// Command json-schema-gen writes the JSON schemas of the payloads accepted by the deckhand API.
package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"reflect"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ettle/strcase"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
	kyaml "sigs.k8s.io/yaml"

	"github.com/jspdown/deckhand/internal/deploy"
	"github.com/jspdown/deckhand/internal/simulation"
)

type target struct {
	title string
	typ   reflect.Type
}

var targets = map[string]target{ //nolint:gochecknoglobals // Read-only table.
	"deployment": {title: "Deckhand Compose Deployment", typ: reflect.TypeFor[deploy.Input]()},
	"simulation": {title: "Deckhand Routing Simulation", typ: reflect.TypeFor[simulation.Simulation]()},
}

// Schema is a draft-07 JSON schema document.
type Schema struct {
	*huma.Schema `yaml:",inline"`

	ID          string        `yaml:"$id"`
	SchemaURL   string        `yaml:"$schema"`
	Definitions huma.Registry `yaml:"definitions"`
}

func main() {
	cmd := &cli.Command{
		Name:  "json-schema-gen",
		Usage: "Write the JSON schema of a deckhand API payload",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Usage: "Payload to describe (" + strings.Join(slices.Sorted(maps.Keys(targets)), ", ") + ")",
				Value: "deployment",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "File the schema is written to, stdout when empty",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			t, ok := targets[cmd.String("target")]
			if !ok {
				return fmt.Errorf("unknown target %q", cmd.String("target"))
			}

			var w io.Writer = os.Stdout
			if output := cmd.String("output"); output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer func() { _ = f.Close() }()

				w = f
			}

			return write(w, cmd.String("target"), t)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Unable to generate JSON schema")
	}
}

func write(w io.Writer, name string, t target) error {
	registry := huma.NewMapRegistry("#/definitions/", namer)

	schema := Schema{
		ID:          "deckhand-" + name + ".schema.json",
		SchemaURL:   "http://json-schema.org/draft-07/schema#",
		Definitions: registry,
		Schema:      huma.SchemaFromType(registry, t.typ),
	}
	schema.Title = t.title

	walk(schema.Schema, dropIntegerFormat)
	for _, definition := range registry.Map() {
		walk(definition, dropIntegerFormat)
	}

	yamlSchema, err := yaml.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	jsonSchema, err := kyaml.YAMLToJSONStrict(yamlSchema)
	if err != nil {
		return fmt.Errorf("converting schema to JSON: %w", err)
	}

	if _, err = w.Write(jsonSchema); err != nil {
		return fmt.Errorf("writing schema: %w", err)
	}

	return nil
}

// namer prefixes definitions with their package so domain.Domain and deploy.Input never collide.
func namer(t reflect.Type, hint string) string {
	name := huma.DefaultSchemaNamer(t, hint)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		return name
	}

	return strcase.ToGoPascal(path.Base(t.PkgPath())) + name
}

// dropIntegerFormat removes the int32/int64 formats huma sets, unknown to draft-07.
func dropIntegerFormat(s *huma.Schema) {
	if s.Type == "integer" {
		s.Format = ""
	}
}

func walk(s *huma.Schema, fn func(*huma.Schema)) {
	if s == nil {
		return
	}

	fn(s)

	for _, sub := range slices.Concat(s.AllOf, s.AnyOf, s.OneOf) {
		walk(sub, fn)
	}
	for _, property := range s.Properties {
		walk(property, fn)
	}

	walk(s.Items, fn)
	walk(s.Not, fn)
}
