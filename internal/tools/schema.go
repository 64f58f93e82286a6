// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/567-labs/instructor-go/pkg/instructor"
)

// mustSchemaFor builds the advertised JSON schema and the flattened
// parameter list for an argument struct. It panics on malformed types since
// the set of argument structs is fixed at compile time.
func mustSchemaFor[T any]() (map[string]interface{}, []Param) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		panic("schema type is nil")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	params, err := schemaParametersForType(t)
	if err != nil {
		panic(err)
	}
	list := paramsForType(t, params)

	required := make([]string, 0, len(list))
	for _, p := range list {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	params["type"] = "object"
	params["required"] = required
	delete(params, "$schema")
	delete(params, "$id")
	return params, list
}

func schemaParametersForType(t reflect.Type) (map[string]interface{}, error) {
	schema, err := instructor.NewSchema(t)
	if err != nil {
		return nil, err
	}

	defName := t.Name()
	for _, fn := range schema.Functions {
		if fn.Name != defName {
			continue
		}
		return jsonSchemaToMap(fn.Parameters)
	}

	return nil, fmt.Errorf("schema definition %q not found", defName)
}

func jsonSchemaToMap(schema interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// paramsForType walks the struct fields in declaration order. Required-ness
// comes from validate tags, the schema type and description from the
// generated schema.
func paramsForType(t reflect.Type, schema map[string]interface{}) []Param {
	properties, _ := schema["properties"].(map[string]interface{})
	list := make([]Param, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field.Tag.Get("json"), field.Name)
		param := Param{
			Name:     name,
			Required: hasValidateRule(field.Tag.Get("validate"), "required"),
		}
		if prop, ok := properties[name].(map[string]interface{}); ok {
			param.Type, _ = prop["type"].(string)
			param.Description, _ = prop["description"].(string)
		}
		if param.Type == "" {
			param.Type = jsonTypeFor(field.Type)
		}
		list = append(list, param)
	}
	return list
}

func hasValidateRule(tag, rule string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == rule {
			return true
		}
	}
	return false
}

func jsonTypeFor(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
