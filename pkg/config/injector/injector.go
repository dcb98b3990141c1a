package injector

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
)

// Regex para capturar padrões ${tipo.chave}
// Ex: ${env.API_KEY}, ${ssm./endpoints/redis}, ${secret.redis#password}
var pattern = regexp.MustCompile(`\$\{(env|ssm|secret)\.([^}]+)\}`)

// Resolver busca o valor real de uma referência (env, ssm, secret).
type Resolver interface {
	Resolve(ctx context.Context, source, key string) (string, error)
}

// envResolver é usado quando nenhum Resolver é informado: só resolve ${env.X}.
type envResolver struct{}

func (envResolver) Resolve(_ context.Context, source, key string) (string, error) {
	if source != "env" {
		return "", fmt.Errorf("referência '%s.%s' exige um resolver AWS", source, key)
	}
	return os.Getenv(key), nil
}

type Injector struct {
	resolver Resolver
}

// New cria um Injector. Sem resolver, apenas variáveis de ambiente são suportadas.
func New(resolver ...Resolver) *Injector {
	inj := &Injector{resolver: envResolver{}}
	if len(resolver) > 0 && resolver[0] != nil {
		inj.resolver = resolver[0]
	}
	return inj
}

// Inject percorre a struct (e mapas/slices aninhados) resolvendo tags env e
// interpolações ${...} em strings.
func (i *Injector) Inject(ctx context.Context, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target deve ser um ponteiro para struct não nulo")
	}
	return i.injectRecursive(ctx, v.Elem())
}

func (i *Injector) injectRecursive(ctx context.Context, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for k := 0; k < t.NumField(); k++ {
			field := t.Field(k)
			value := v.Field(k)

			if !value.CanSet() {
				continue
			}

			// 1. Tag env tem precedência sobre o valor do YAML
			if err := i.processStructTag(field, value); err != nil {
				return err
			}

			// 2. Interpolação "${...}"
			if value.Kind() == reflect.String {
				newValue, err := i.interpolateString(ctx, value.String())
				if err != nil {
					return fmt.Errorf("campo '%s': %w", field.Name, err)
				}
				value.SetString(newValue)
				continue
			}

			// 3. Recursão
			if err := i.injectRecursive(ctx, value); err != nil {
				return err
			}
		}

	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && !v.IsNil() {
			return i.injectMap(ctx, v)
		}

	case reflect.Ptr:
		if !v.IsNil() {
			return i.injectRecursive(ctx, v.Elem())
		}

	case reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			elem := v.Index(j)
			if elem.Kind() == reflect.String && elem.CanSet() {
				newValue, err := i.interpolateString(ctx, elem.String())
				if err != nil {
					return err
				}
				elem.SetString(newValue)
				continue
			}
			if err := i.injectRecursive(ctx, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Injector) processStructTag(field reflect.StructField, value reflect.Value) error {
	tag := field.Tag.Get("env")
	if tag == "" {
		return nil
	}
	raw, exists := os.LookupEnv(tag)
	if !exists {
		return nil
	}
	switch value.Kind() {
	case reflect.String:
		value.SetString(raw)
	case reflect.Bool:
		value.SetBool(strings.EqualFold(raw, "true") || raw == "1")
	}
	return nil
}

// interpolateString realiza a substituição baseada em Regex
func (i *Injector) interpolateString(ctx context.Context, input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var err error
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		if err != nil {
			return match
		}
		sub := pattern.FindStringSubmatch(match)
		val, resolveErr := i.resolver.Resolve(ctx, sub[1], sub[2])
		if resolveErr != nil {
			err = resolveErr
			return match
		}
		return val
	})

	return result, err
}

// injectMap lida com mapas dinâmicos (map[string]interface{} e map[string]string)
func (i *Injector) injectMap(ctx context.Context, v reflect.Value) error {
	iter := v.MapRange()
	updates := make(map[string]reflect.Value)

	for iter.Next() {
		key := iter.Key()
		elem := iter.Value()
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		if !elem.IsValid() {
			continue
		}

		switch elem.Kind() {
		case reflect.String:
			newVal, err := i.interpolateString(ctx, elem.String())
			if err != nil {
				return fmt.Errorf("chave '%s': %w", key.String(), err)
			}
			updates[key.String()] = reflect.ValueOf(newVal).Convert(v.Type().Elem())
		case reflect.Map:
			if elem.Type().Key().Kind() == reflect.String && !elem.IsNil() {
				if err := i.injectMap(ctx, elem); err != nil {
					return err
				}
			}
		}
	}

	for k, val := range updates {
		v.SetMapIndex(reflect.ValueOf(k).Convert(v.Type().Key()), val)
	}
	return nil
}
