package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// apiNamePattern segue a regra de nomes de API: começa com letra minúscula
// e contém apenas letras e dígitos.
var apiNamePattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// pathParamPattern identifica parâmetros na rota (ex: {id}).
var pathParamPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	v := validator.New()
	_ = v.RegisterValidation("api_name", func(fl validator.FieldLevel) bool {
		return apiNamePattern.MatchString(fl.Field().String())
	})
	return &ConfigValidator{validate: v}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *EndpointsConfig) error {
	// 1. Validação Estrutural (Tags do struct: required, oneof, etc)
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	// 2. Validação Semântica (Regras de negócio da configuração)
	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *EndpointsConfig) error {
	basePath := cfg.Server.GetBasePath()
	if basePath == cfg.Server.GetRegistryPath() {
		return fmt.Errorf("base_path e registry_path não podem ser iguais: '%s'", basePath)
	}

	seenAPIs := make(map[string]bool)
	for _, api := range cfg.APIs {
		// 1. Unicidade de (nome, versão)
		key := api.Name + ":" + api.Version
		if seenAPIs[key] {
			return fmt.Errorf("API duplicada detectada: '%s' versão '%s'", api.Name, api.Version)
		}
		seenAPIs[key] = true

		if err := validateMethods(api); err != nil {
			return err
		}
	}

	return nil
}

func validateMethods(api APIConf) error {
	seenNames := make(map[string]bool)
	seenRoutes := make(map[string]string)

	for _, m := range api.Methods {
		// 2. Unicidade do nome do método dentro da API
		if seenNames[m.Name] {
			return fmt.Errorf("método duplicado na API '%s': '%s'", api.Name, m.Name)
		}
		seenNames[m.Name] = true

		// 3. Unicidade de (verbo, rota). Parâmetros com nomes diferentes
		// ocupam a mesma rota, por isso a chave usa o template normalizado.
		route := strings.ToUpper(m.HTTPMethod) + " " + NormalizeTemplate(m.Path)
		if other, exists := seenRoutes[route]; exists {
			return fmt.Errorf("rota '%s %s' da API '%s' conflita com o método '%s'", m.HTTPMethod, m.Path, api.Name, other)
		}
		seenRoutes[route] = m.Name

		if strings.HasPrefix(m.Path, "/") {
			return fmt.Errorf("path do método '%s' deve ser relativo (sem '/' inicial): '%s'", m.Name, m.Path)
		}

		// 4. Target (modo proxy)
		if m.Target.Auth != nil && m.Target.URL == "" {
			return fmt.Errorf("método '%s' declara auth sem target url", m.Name)
		}
		if m.Target.URL != "" {
			method := strings.ToUpper(m.Target.Method)
			validMethods := map[string]bool{"POST": true, "PUT": true, "PATCH": true, "GET": true, "DELETE": true, "": true}
			if !validMethods[method] {
				return fmt.Errorf("método HTTP inválido no target de '%s': '%s'", m.Name, method)
			}
		}
	}
	return nil
}

// NormalizeTemplate troca os nomes dos parâmetros por "{}" para comparar rotas.
func NormalizeTemplate(path string) string {
	return pathParamPattern.ReplaceAllString(strings.Trim(path, "/"), "{}")
}

// PathParams retorna os nomes dos parâmetros declarados no template, em ordem.
func PathParams(path string) []string {
	matches := pathParamPattern.FindAllStringSubmatch(path, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
