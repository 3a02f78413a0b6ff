package logstore

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/storyeval/storyeval/pkg/models"
)

var unmarshalerType = reflect.TypeFor[json.Unmarshaler]()

// decodeEntry decodes a stored row body. When a field holds a value of the
// wrong type only that field is left at its zero value; the dotted paths of
// such fields are returned. An error means body is not a JSON object.
func decodeEntry(body []byte) (models.LogEntry, []string, error) {
	var e models.LogEntry
	if err := json.Unmarshal(body, &e); err == nil {
		return e, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.LogEntry{}, nil, err
	}
	e = models.LogEntry{}
	var bad []string
	decodeFields(fields, reflect.ValueOf(&e).Elem(), "", &bad)
	return e, bad, nil
}

func decodeFields(fields map[string]json.RawMessage, dst reflect.Value, prefix string, bad *[]string) {
	t := dst.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := jsonName(sf)
		if name == "-" {
			continue
		}
		raw, ok := lookup(fields, name)
		if !ok {
			continue
		}

		fv := dst.Field(i)
		if err := json.Unmarshal(raw, fv.Addr().Interface()); err == nil {
			continue
		}
		fv.Set(reflect.Zero(sf.Type))

		path := prefix + name
		if nested, ok := objectFields(raw); ok && descendable(sf.Type) {
			target := fv
			if sf.Type.Kind() == reflect.Pointer {
				fv.Set(reflect.New(sf.Type.Elem()))
				target = fv.Elem()
			}
			decodeFields(nested, target, path+".", bad)
			continue
		}
		*bad = append(*bad, path)
	}
}

func jsonName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" {
		return sf.Name
	}
	return name
}

// lookup matches keys the way encoding/json does: exact first, then case-insensitive.
func lookup(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if raw, ok := fields[name]; ok {
		return raw, true
	}
	for k, raw := range fields {
		if strings.EqualFold(k, name) {
			return raw, true
		}
	}
	return nil, false
}

func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) != nil || m == nil {
		return nil, false
	}
	return m, true
}

// descendable reports whether t is a plain struct (or pointer to one) whose
// fields can be decoded one at a time.
func descendable(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	return !reflect.PointerTo(t).Implements(unmarshalerType)
}
