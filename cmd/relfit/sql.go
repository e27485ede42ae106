package main

import (
	"fmt"

	"relfit/internal/dataframe"
	"relfit/internal/dialect"
	"relfit/internal/pipeline"
	"relfit/internal/schema"
	"relfit/internal/sqlgen"
)

// renderSQL renders one SQL statement per fitted candidate across every
// feature learner, in the requested dialect. Mirrors the command
// server's Pipeline.to_sql handler.
func renderSQL(p *pipeline.Pipeline, tables map[string]*dataframe.DataFrame, dialectName string) ([]string, error) {
	d, err := dialect.Get(dialect.Type(dialectName))
	if err != nil {
		return nil, err
	}
	gen := d.Generator()

	root := p.Root()
	statements := make([]string, 0, len(p.FeatureLearners))
	for _, fl := range p.FeatureLearners {
		var edge *schema.Child
		for _, c := range root.Children {
			if c.Table.Name == fl.Peripheral {
				edge = c
				break
			}
		}
		if edge == nil {
			return nil, fmt.Errorf("no schema edge for peripheral %q", fl.Peripheral)
		}

		pop, ok := tables[root.Name]
		if !ok {
			return nil, fmt.Errorf("no table registered for population %q", root.Name)
		}
		perip, ok := tables[fl.Peripheral]
		if !ok {
			return nil, fmt.Errorf("no table registered for peripheral %q", fl.Peripheral)
		}

		names := sqlgen.ColumnNames{
			NumericalInput:    perip.NumericalNames(),
			NumericalOutput:   pop.NumericalNames(),
			DiscreteInput:     perip.DiscreteNames(),
			DiscreteOutput:    pop.DiscreteNames(),
			CategoricalInput:  perip.CategoricalNames(),
			CategoricalOutput: pop.CategoricalNames(),
		}
		g := sqlgen.New(gen, sqlgen.Edge{PopAlias: "pop", PerpAlias: "perip", Child: edge}, names, pop.CatEncoding)

		for _, contrib := range fl.Ensemble.Contributions {
			sqlText, err := g.Render(contrib.Tree, contrib.Candidate)
			if err != nil {
				return nil, fmt.Errorf("peripheral %q: %w", fl.Peripheral, err)
			}
			statements = append(statements, sqlText)
		}
	}
	return statements, nil
}
