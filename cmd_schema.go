package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"goclrmeta/clrmeta"
	"goclrmeta/common"
)

// SchemaReport lists the table layout of one image.
type SchemaReport struct {
	File      string              `json:"file" yaml:"file"`
	HeapSizes uint8               `json:"heapSizes" yaml:"heapSizes"`
	Valid     string              `json:"valid" yaml:"valid"`
	Tables    []clrmeta.TableInfo `json:"tables" yaml:"tables"`
	RowsSize  uint64              `json:"rowsSize" yaml:"rowsSize"`
}

func newSchemaCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "schema FILE",
		Short: "List present tables with row counts, row sizes and offsets",
		Example: `  clrmeta schema HelloWorld.dll
  clrmeta schema --tables 'Assembly*,TypeDef' HelloWorld.dll`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd.OutOrStdout(), args[0], filter)
		},
	}
	cmd.Flags().StringVarP(&filter, "tables", "t", "", "Comma-separated table names; a trailing * matches a prefix")
	return cmd
}

func runSchema(out io.Writer, path, filter string) error {
	r, err := clrmeta.Open(path)
	if err != nil {
		return explain(path, err)
	}
	defer r.Close()

	s := r.Image().Schema
	rep := &SchemaReport{
		File:      path,
		HeapSizes: uint8(s.HeapSizes),
		Valid:     common.FormatHex(s.Valid, 16),
		RowsSize:  s.RowsSize(),
	}
	exact, prefixes := common.SplitPatterns(filter)
	for _, t := range s.Tables() {
		if filter != "" && !common.MatchesPattern(t.Name, exact, prefixes) {
			continue
		}
		rep.Tables = append(rep.Tables, t)
	}

	if ok, err := printStructured(out, rep); ok || err != nil {
		return err
	}
	fmt.Fprint(out, formatTables(rep.Tables))
	fmt.Fprintf(out, "\nValid %s, heap sizes %s, %d bytes of rows\n",
		rep.Valid, common.FormatHex(uint64(rep.HeapSizes), 2), rep.RowsSize)
	return nil
}
