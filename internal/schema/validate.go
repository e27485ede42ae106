package schema

import (
	"fmt"

	"relfit/internal/dataframe"
	"relfit/internal/engineerr"
)

// Validate checks the schema tree against tables (table name -> its
// DataFrame), returning the first error encountered. It is called after
// a Placeholder tree has been assembled and before it is handed to the
// match engine.
func (p *Placeholder) Validate(tables map[string]*dataframe.DataFrame) error {
	if err := p.validateRequiredFields(tables); err != nil {
		return err
	}
	if err := p.validateChildren(tables); err != nil {
		return err
	}
	return nil
}

func (p *Placeholder) validateRequiredFields(tables map[string]*dataframe.DataFrame) error {
	if p.Name == "" {
		return engineerr.New(engineerr.InvalidArgument, "placeholder: table name is required")
	}
	if _, ok := tables[p.Name]; !ok {
		return engineerr.Newf(engineerr.InvalidArgument, "placeholder %q: no table registered under that name", p.Name)
	}
	return nil
}

func (p *Placeholder) validateChildren(tables map[string]*dataframe.DataFrame) error {
	popDF := tables[p.Name]
	for _, child := range p.Children {
		if err := child.validate(popDF, tables); err != nil {
			return fmt.Errorf("placeholder %q: %w", p.Name, err)
		}
		if err := child.Table.Validate(tables); err != nil {
			return err
		}
	}
	return nil
}

func (c *Child) validate(popDF *dataframe.DataFrame, tables map[string]*dataframe.DataFrame) error {
	peripDF, ok := tables[c.Table.Name]
	if !ok {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: no table registered under that name", c.Table.Name)
	}

	if c.PopulationJoinKey == "" || c.PeripheralJoinKey == "" {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: join key columns are required on both sides", c.Table.Name)
	}
	if _, err := popDF.JoinKey(c.PopulationJoinKey); err != nil {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: population join key %q: %v", c.Table.Name, c.PopulationJoinKey, err)
	}
	if _, err := peripDF.JoinKey(c.PeripheralJoinKey); err != nil {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: peripheral join key %q: %v", c.Table.Name, c.PeripheralJoinKey, err)
	}

	if c.PopulationTimeStamp == "" || c.PeripheralTimeStamp == "" {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: time stamp columns are required on both sides", c.Table.Name)
	}
	if _, err := popDF.TimeStamp(c.PopulationTimeStamp); err != nil {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: population time stamp %q: %v", c.Table.Name, c.PopulationTimeStamp, err)
	}
	if _, err := peripDF.TimeStamp(c.PeripheralTimeStamp); err != nil {
		return engineerr.Newf(engineerr.InvalidArgument, "child %q: peripheral time stamp %q: %v", c.Table.Name, c.PeripheralTimeStamp, err)
	}

	if c.UpperTimeStamp != "" {
		if _, err := peripDF.TimeStamp(c.UpperTimeStamp); err != nil {
			return engineerr.Newf(engineerr.InvalidArgument, "child %q: upper time stamp %q: %v", c.Table.Name, c.UpperTimeStamp, err)
		}
		if c.UpperTimeStamp == c.PeripheralTimeStamp {
			return engineerr.Newf(engineerr.SchemaViolation, "child %q: upper_time_stamp must be a column distinct from (and semantically >= ) time_stamp, got the same column %q", c.Table.Name, c.UpperTimeStamp)
		}
	}
	return nil
}
