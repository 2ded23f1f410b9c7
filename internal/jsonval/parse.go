package jsonval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxDepth is the deepest nesting of objects and arrays Parse accepts.
const MaxDepth = 10000

var (
	errTrailingData = errors.New("jsonval: unexpected data after top-level value")
	// ErrTooDeep is returned when a document nests past MaxDepth.
	ErrTooDeep = errors.New("jsonval: document nested too deeply")
)

// Parse decodes a single JSON document, keeping object member order.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decode(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errTrailingData
		}
		return nil, err
	}
	return v, nil
}

func decode(dec *json.Decoder, depth int) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		}
		return nil, fmt.Errorf("jsonval: unexpected delimiter %q", t)
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return NewNull(), nil
	}
	return nil, fmt.Errorf("jsonval: unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (*Value, error) {
	obj := &Value{kind: Object}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("jsonval: object key is %T, not string", tok)
		}
		val, err := decode(dec, depth)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder, depth int) (*Value, error) {
	arr := &Value{kind: Array, items: []*Value{}}
	for dec.More() {
		val, err := decode(dec, depth)
		if err != nil {
			return nil, err
		}
		arr.items = append(arr.items, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
