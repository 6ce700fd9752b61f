package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"goclrmeta/common"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	heading  = color.New(color.Bold).SprintFunc()
)

// printStructured writes data as JSON or YAML, depending on config.Output.
// It reports false for text output so the caller renders it instead.
func printStructured(w io.Writer, data interface{}) (bool, error) {
	switch config.Output {
	case outputJSON:
		return true, dumpJSON(w, data)
	case outputYAML:
		return true, dumpYAML(w, data)
	default:
		return false, nil
	}
}

func dumpJSON(w io.Writer, data interface{}) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "couldn't marshal to json")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func dumpYAML(w io.Writer, data interface{}) error {
	b, err := yaml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "couldn't marshal to yaml")
	}
	_, err = w.Write(b)
	return err
}

func printResult(w io.Writer, r *common.FileResult) {
	if r.Err != nil {
		fmt.Fprintf(w, "  %s %s: %v\n", failMark(common.SymbolCross), r.File, r.Err)
		return
	}
	fmt.Fprintf(w, "  %s %s: %d metadata rows\n", okMark(common.SymbolCheck), r.File, r.Count)
}
