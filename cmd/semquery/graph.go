package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/graph"
	"github.com/c360/semquery/schema"
)

type graphFlags struct {
	schemas   []string
	factsFile string
	display   bool
}

type edgeLine struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	Relationship graph.Relationship `json:"relationship"`
}

type graphDump struct {
	SchemaVersion string     `json:"schema_version"`
	Vertices      int        `json:"vertices"`
	Edges         []edgeLine `json:"edges"`
}

func newGraphCmd(g *globalFlags) *cobra.Command {
	f := &graphFlags{}
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the search graph built from a schema as JSON",
		Long: `graph prints the vertices and edges the engine searches over. With --facts the
types of the given facts are added as fact vertices; with --display the graph is
reduced to the relationships between types a person would draw.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			provider, err := a.loadSchema(f.schemas, false)
			if err != nil {
				return err
			}
			dump, err := buildGraphDump(provider.Schema(), f, a)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dump)
		},
	}
	cmd.Flags().StringSliceVarP(&f.schemas, "schema", "s", nil, "SDL schema files (repeatable)")
	cmd.Flags().StringVarP(&f.factsFile, "facts", "f", "", "YAML fact file whose types become fact vertices")
	cmd.Flags().BoolVar(&f.display, "display", false, "print the display projection instead of the search graph")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func buildGraphDump(s *schema.Schema, f *graphFlags, a *app) (*graphDump, error) {
	g, err := graph.Build(s)
	if err != nil {
		return nil, err
	}
	if f.factsFile != "" {
		loaded, err := facts.LoadFile(f.factsFile, s)
		if err != nil {
			return nil, err
		}
		var types []schema.QualifiedName
		for _, fact := range loaded.Facts() {
			types = append(types, fact.Value.Type)
		}
		if g, err = graph.WithFactTypes(g, s, types); err != nil {
			return nil, err
		}
	}
	if f.display {
		if g, err = graph.Display(g, a.logger); err != nil {
			return nil, err
		}
	}

	dump := &graphDump{SchemaVersion: s.Version(), Vertices: g.Order()}
	for _, e := range g.Edges() {
		dump.Edges = append(dump.Edges, edgeLine{From: e.From.String(), To: e.To.String(), Relationship: e.Relationship})
	}
	sort.Slice(dump.Edges, func(i, j int) bool {
		a, b := dump.Edges[i], dump.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Relationship.String() < b.Relationship.String()
	})
	return dump, nil
}
