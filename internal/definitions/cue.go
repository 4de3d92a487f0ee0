package definitions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadCUE builds the CUE package in dir and exports it as a generic tree.
// CUE definitions may use constraints, defaults and references; only the
// concrete exported value reaches the decoder.
func loadCUE(dir string) (any, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, cueError(ErrCodeLoadFailed, "loading CUE files", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, "building CUE value", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeBuildFailed, "definitions must be concrete", err)
	}

	data, err := value.MarshalJSON()
	if err != nil {
		return nil, cueError(ErrCodeBuildFailed, "exporting CUE value", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("decoding exported CUE: %v", err)}
	}
	return doc, nil
}

// cueError keeps the position of the first CUE error, if any.
func cueError(code, context string, err error) *LoadError {
	le := &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
	if errs := errors.Errors(err); len(errs) > 0 {
		if pos := errs[0].Position(); pos.IsValid() {
			le.Pos = pos
			le.Message = fmt.Sprintf("%s: %s", context, errs[0].Error())
		}
	}
	return le
}
