// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"fmt"
	"reflect"
)

// InvalidEnvTargetError é retornado quando LoadEnv recebe algo que não é
// um ponteiro não nulo para struct.
type InvalidEnvTargetError struct {
	Type reflect.Type
}

func (e *InvalidEnvTargetError) Error() string {
	if e.Type == nil {
		return "config: env target must be a non-nil pointer to struct, got nil"
	}
	return fmt.Sprintf("config: env target must be a non-nil pointer to struct, got %s", e.Type)
}

// EnvFieldError é retornado quando o valor de uma variável não pode ser
// convertido para o tipo do campo.
type EnvFieldError struct {
	// FieldName é o nome do campo da struct (ex: "Port").
	FieldName string
	// EnvVar é o nome da variável de ambiente (ex: "PORT").
	EnvVar string
	// Value é o valor bruto que causou o erro.
	Value string
	// Err é o erro original (ex: *strconv.NumError).
	Err error
}

func (e *EnvFieldError) Error() string {
	return fmt.Sprintf("config: error setting field %s from env %s=%s: %v",
		e.FieldName, e.EnvVar, e.Value, e.Err)
}

// Unwrap expõe o erro original para errors.Is / errors.As.
func (e *EnvFieldError) Unwrap() error {
	return e.Err
}

// UnsupportedEnvTypeError indica um campo com tipo sem conversão suportada.
type UnsupportedEnvTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedEnvTypeError) Error() string {
	return fmt.Sprintf("config: unsupported env type %s", e.Type)
}
