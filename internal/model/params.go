package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParamKind is the set of scalar kinds a parameter value can hold.
type ParamKind int

const (
	KindString ParamKind = iota
	KindNumber
	KindBool
)

// ParamValue is one scalar value. Coercion to string happens only at
// substitution time, via String().
type ParamValue struct {
	Kind ParamKind
	Str  string
	Num  float64
	Bool bool
}

func StringValue(s string) ParamValue  { return ParamValue{Kind: KindString, Str: s} }
func NumberValue(n float64) ParamValue { return ParamValue{Kind: KindNumber, Num: n} }
func BoolValue(b bool) ParamValue      { return ParamValue{Kind: KindBool, Bool: b} }

func (v ParamValue) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Param is one named parameter.
type Param struct {
	Name  string
	Value ParamValue
}

// Params is an ordered list of named scalar values. Uploaded contact columns
// and campaign fixed parameters keep their source order, which a plain Go map
// would lose, so JSON (un)marshalling goes through the token stream.
type Params []Param

func (p Params) Get(name string) (ParamValue, bool) {
	for _, item := range p {
		if item.Name == name {
			return item.Value, true
		}
	}
	return ParamValue{}, false
}

func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, item := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(item.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		switch item.Value.Kind {
		case KindNumber:
			buf.WriteString(strconv.FormatFloat(item.Value.Num, 'f', -1, 64))
		case KindBool:
			buf.WriteString(strconv.FormatBool(item.Value.Bool))
		default:
			val, err := json.Marshal(item.Value.Str)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("params: expected JSON object, got %v", tok)
	}

	out := Params{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("params: invalid key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		var val ParamValue
		switch t := valTok.(type) {
		case string:
			val = StringValue(t)
		case json.Number:
			n, err := t.Float64()
			if err != nil {
				return fmt.Errorf("params: invalid number for %q: %v", key, err)
			}
			val = NumberValue(n)
		case bool:
			val = BoolValue(t)
		case nil:
			val = StringValue("")
		default:
			return fmt.Errorf("params: value for %q must be a scalar", key)
		}
		out = append(out, Param{Name: key, Value: val})
	}
	*p = out
	return nil
}

// Value implements driver.Valuer so Params can be stored in a JSONB column.
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Params) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("params: cannot scan %T", src)
	}
}
