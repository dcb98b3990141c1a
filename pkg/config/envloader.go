package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LoadEnv preenche uma struct a partir das variáveis de ambiente do processo,
// seguindo as tags "env" e "envDefault".
//
// Só é usado no boot (cmd/server) para montar o RuntimeEnv; o restante do
// framework recebe os valores já resolvidos.
func LoadEnv(target interface{}) error {
	return loadEnvWith(target, os.LookupEnv)
}

// lookupFunc permite trocar a origem das variáveis nos testes.
type lookupFunc func(key string) (string, bool)

func loadEnvWith(target interface{}, lookup lookupFunc) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return &InvalidEnvTargetError{Type: reflect.TypeOf(target)}
	}
	return loadEnvStruct(val.Elem(), lookup)
}

func loadEnvStruct(val reflect.Value, lookup lookupFunc) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadEnvStruct(field, lookup); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			if err := loadEnvStruct(field.Elem(), lookup); err != nil {
				return err
			}
			continue
		}

		key := fieldType.Tag.Get("env")
		if key == "" {
			continue
		}

		raw, ok := lookup(key)
		if !ok || raw == "" {
			raw = fieldType.Tag.Get("envDefault")
		}
		if raw == "" {
			continue
		}

		if err := setEnvField(field, raw); err != nil {
			return &EnvFieldError{
				FieldName: fieldType.Name,
				EnvVar:    key,
				Value:     raw,
				Err:       err,
			}
		}
	}

	return nil
}

func setEnvField(field reflect.Value, raw string) error {
	// Duration antes do switch: time.Duration também é Int64.
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(v)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(v)

	case reflect.Bool:
		v, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return err
		}
		field.SetBool(v)

	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(v)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return &UnsupportedEnvTypeError{Type: field.Type()}
		}
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)

	default:
		return &UnsupportedEnvTypeError{Type: field.Type()}
	}

	return nil
}
