package definitions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/semlayer/internal/semantic"
)

// Format identifies how a definitions directory is written.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// LoadResult contains the results of loading a definitions directory.
type LoadResult struct {
	Definitions semantic.Definitions
	Format      Format
	Files       []string // Files read, in load order
}

// LoadDir loads every definition document in dir.
//
// If dir contains .cue files they are loaded as one CUE package and all
// other files are ignored. Otherwise every .yml, .yaml and .json file is
// decoded in name order and merged: column and metric lists concatenate,
// taxonomy families merge. Duplicates are left for semantic.Build to
// report.
//
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("definitions directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing definitions directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) > 0 {
		return loadCUEDir(dir, cueFiles, mode)
	}

	files, err := findDocumentFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no definition files (.cue, .yml, .yaml, .json) found in %s", dir)}}
	}

	result := &LoadResult{Format: FormatYAML, Files: files}
	d := &decoder{mode: mode}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			d.errs = append(d.errs, &LoadError{Code: ErrCodeGeneric, File: path, Message: err.Error()})
			if mode == LoadModeFailFast {
				break
			}
			continue
		}

		var doc any
		if filepath.Ext(path) == ".json" {
			result.Format = FormatJSON
			doc, err = parseJSON(data)
		} else {
			doc, err = parseYAML(data)
		}
		if err != nil {
			d.errs = append(d.errs, &LoadError{Code: ErrCodeParseFailed, File: path, Message: err.Error()})
			if mode == LoadModeFailFast {
				break
			}
			continue
		}

		d.document(path, doc)
		if d.stopped() {
			break
		}
	}

	result.Definitions = d.defs
	return result, d.errs
}

func loadCUEDir(dir string, files []string, mode LoadMode) (*LoadResult, []error) {
	doc, err := loadCUE(dir)
	if err != nil {
		return nil, []error{err}
	}
	d := &decoder{mode: mode}
	d.document(dir, doc)
	return &LoadResult{Definitions: d.defs, Format: FormatCUE, Files: files}, d.errs
}

// findDocumentFiles returns the YAML and JSON files directly inside dir,
// sorted by name.
func findDocumentFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml", ".json":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

func parseYAML(data []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return nil, nil // empty document
	}
	return yamlToGeneric(&root)
}

func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadModel loads dir, collecting every load error, and builds the
// semantic model from the result. Load errors and definition errors are
// both returned joined; the model is nil if there are any.
func LoadModel(dir string, opts ...semantic.Option) (*semantic.Model, error) {
	result, errs := LoadDir(dir, LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return semantic.Build(result.Definitions, opts...)
}
