package main

import (
	"encoding/json"
	"fmt"
	"os"

	"relfit/internal/connector"
	connectorcsv "relfit/internal/connector/csv"
	"relfit/internal/dataframe"
)

// columnSpec is the manifest's wire shape for one source column's role
// assignment, decoded separately from connector.ColumnSpec so the
// manifest reads as lowercase JSON rather than Go field names.
type columnSpec struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type tableManifest struct {
	Name    string       `json:"name"`
	CSV     string       `json:"csv"`
	Columns []columnSpec `json:"columns"`
}

// datasetManifest names every table a fit/transform/score/sql
// invocation needs, each backed by a CSV file on disk. Passed via
// --dataset.
type datasetManifest struct {
	Tables []tableManifest `json:"tables"`
}

func toColumnSpecs(in []columnSpec) []connector.ColumnSpec {
	out := make([]connector.ColumnSpec, len(in))
	for i, c := range in {
		out[i] = connector.ColumnSpec{Name: c.Name, Role: connector.Role(c.Role)}
	}
	return out
}

// loadDataset reads the manifest at path and loads every table's CSV
// file into a DataFrame, sharing enc across all of them so join keys
// and categories from different tables intern consistently.
func loadDataset(path string, enc connector.Encodings) (map[string]*dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open manifest %q: %w", path, err)
	}
	defer f.Close()

	var manifest datasetManifest
	if err := json.NewDecoder(f).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("dataset: decode manifest %q: %w", path, err)
	}

	tables := make(map[string]*dataframe.DataFrame, len(manifest.Tables))
	for _, tm := range manifest.Tables {
		csvFile, err := os.Open(tm.CSV)
		if err != nil {
			return nil, fmt.Errorf("dataset: table %q: open csv %q: %w", tm.Name, tm.CSV, err)
		}
		df, err := connectorcsv.Load(csvFile, tm.Name, toColumnSpecs(tm.Columns), enc)
		csvFile.Close()
		if err != nil {
			return nil, fmt.Errorf("dataset: table %q: %w", tm.Name, err)
		}
		tables[tm.Name] = df
	}
	return tables, nil
}
