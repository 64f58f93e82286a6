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
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

type listDirectoryArgs struct {
	Path string `json:"path,omitempty" mapstructure:"path" jsonschema:"description=Directory to list relative to the working directory (empty lists the working directory itself)"`
}

type readFileArgs struct {
	Path string `json:"path" mapstructure:"path" validate:"required" jsonschema:"description=File to read relative to the working directory,minLength=1"`
}

type writeFileArgs struct {
	Path    string  `json:"path" mapstructure:"path" validate:"required" jsonschema:"description=File to create or overwrite relative to the working directory,minLength=1"`
	Content *string `json:"content" mapstructure:"content" validate:"required" jsonschema:"description=Text content to write"`
}

type runScriptArgs struct {
	Path string   `json:"path" mapstructure:"path" validate:"required" jsonschema:"description=Script to execute relative to the working directory,minLength=1"`
	Args []string `json:"args,omitempty" mapstructure:"args" jsonschema:"description=Command-line arguments passed to the script"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func argValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			return jsonFieldName(field.Tag.Get("json"), field.Name)
		})
	})
	return validate
}

// unmarshalAndValidate decodes loosely typed model arguments onto T and
// checks its validate tags. Unknown keys and type mismatches are rejected.
func unmarshalAndValidate[T any](args map[string]interface{}) (T, error) {
	var out T
	if args == nil {
		args = map[string]interface{}{}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		ErrorUnused: true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(args); err != nil {
		return out, fmt.Errorf("%w: %s", ErrInvalidArguments, describeDecodeError(err))
	}

	if err := argValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed %s", fe.Field(), fe.Tag()))
			}
			return out, fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
		}
		return out, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return out, nil
}

func describeDecodeError(err error) string {
	var merr *mapstructure.Error
	if errors.As(err, &merr) {
		return strings.Join(merr.Errors, "; ")
	}
	return err.Error()
}

func jsonFieldName(tag, fallback string) string {
	name := strings.Split(tag, ",")[0]
	if name == "" || name == "-" {
		return fallback
	}
	return name
}
