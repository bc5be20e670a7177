// Package settings keeps the JSON settings document structurally in line with
// a set of defaults.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/fsutil"
)

// FileName is the settings document name inside the data directory.
const FileName = "settings.json"

// Ensure loads the document at path and fills every key missing from it with
// the matching default, recursing into nested objects. A value whose JSON kind
// disagrees with its default is replaced by the default. Integers and
// fractional numbers are different kinds: 0.5 does not satisfy a default of 0.
//
// With fix set, an absent or malformed document is treated as empty and the
// file is rewritten only when something changed. Without fix, a malformed
// document fails with ErrMalformedDocument and drift fails with
// ErrValidationFailed; the file is never touched.
func Ensure(path string, defaults map[string]any, fix bool) (bool, error) {
	doc, err := load(path)
	if err != nil {
		if apperr.Is(err, apperr.ErrPermissionDenied) || !fix {
			return false, err
		}
		doc = map[string]any{}
	}

	if len(defaults) == 0 {
		return false, nil
	}

	if !fix {
		if Fill(clone(doc).(map[string]any), defaults) {
			return false, apperr.ValidationFailed(path, "settings do not match the expected structure")
		}
		return false, nil
	}

	if !Fill(doc, defaults) {
		return false, nil
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return false, apperr.Wrap(apperr.ErrMalformedDocument, err, "failed to encode settings").WithPath(path)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return false, apperr.PermissionDenied(path, "write", err)
	}
	return true, nil
}

// Fill applies defaults to doc in place and reports whether doc changed.
func Fill(doc, defaults map[string]any) bool {
	modified := false

	for key, def := range defaults {
		val, ok := doc[key]
		if !ok {
			doc[key] = clone(def)
			modified = true
			continue
		}

		defMap, defIsMap := def.(map[string]any)
		valMap, valIsMap := val.(map[string]any)
		if defIsMap && valIsMap {
			if Fill(valMap, defMap) {
				modified = true
			}
			continue
		}

		if kindOf(val) != kindOf(def) {
			doc[key] = clone(def)
			modified = true
		}
	}

	return modified
}

func load(path string) (map[string]any, error) {
	if fsutil.Exists(path) && !fsutil.ReadWritable(path) {
		return nil, apperr.PermissionDenied(path, "read and write", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.ErrMalformedDocument, err, "settings file not found").WithPath(path)
		}
		return nil, apperr.PermissionDenied(path, "read", err)
	}

	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.ErrMalformedDocument, err, "failed to decode settings").WithPath(path)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, apperr.New(apperr.ErrMalformedDocument, "unexpected data after settings document").WithPath(path)
	}
	if doc == nil {
		// a literal null decodes without error
		return nil, apperr.New(apperr.ErrMalformedDocument, "settings document is not an object").WithPath(path)
	}
	return doc, nil
}

type kind int

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindArray
	kindObject
	kindOther
)

func kindOf(v any) kind {
	switch t := v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInt
	case float32, float64:
		return kindFloat
	case json.Number:
		if strings.ContainsAny(t.String(), ".eE") {
			return kindFloat
		}
		return kindInt
	case string:
		return kindString
	case []any:
		return kindArray
	case map[string]any:
		return kindObject
	default:
		return kindOther
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = clone(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = clone(val)
		}
		return s
	default:
		return v
	}
}
