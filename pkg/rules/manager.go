package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// RuleManager gerencia a compilação e avaliação de expressões CEL usadas
// nas validações dos métodos.
//
// Variáveis disponíveis nas expressões:
//   - request: corpo JSON da requisição
//   - path:    parâmetros de path
//   - query:   parâmetros de query (primeiro valor)
//   - header:  cabeçalhos (primeiro valor, nome canônico)
type RuleManager struct {
	env      *cel.Env
	programs sync.Map // expressão -> cel.Program
}

// NewRuleManager inicializa o ambiente CEL com as variáveis padrão esperadas.
func NewRuleManager() (*RuleManager, error) {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.DynType),
		cel.Variable("path", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("header", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}

	return &RuleManager{env: env}, nil
}

// EvaluateBool processa regras de validação (deve retornar true/false).
func (rm *RuleManager) EvaluateBool(expression string, vars map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil // Expressão vazia = aprova
	}

	prg, err := rm.CompileProgram(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(withDefaults(vars))
	if err != nil {
		return false, fmt.Errorf("erro execução CEL: %w", err)
	}

	if val, ok := out.Value().(bool); ok {
		return val, nil
	}
	return false, fmt.Errorf("resultado de '%s' não é booleano", expression)
}

// CompileProgram compila (e memoriza) a expressão.
func (rm *RuleManager) CompileProgram(expr string) (cel.Program, error) {
	if prg, ok := rm.programs.Load(expr); ok {
		return prg.(cel.Program), nil
	}

	ast, issues := rm.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("erro de compilação CEL '%s': %w", expr, issues.Err())
	}
	if kind := ast.OutputType().Kind(); kind != types.BoolKind && kind != types.DynKind {
		return nil, fmt.Errorf("expressão CEL '%s' deve retornar bool, retorna %s", expr, ast.OutputType())
	}
	prg, err := rm.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar programa CEL: %w", err)
	}

	rm.programs.Store(expr, prg)
	return prg, nil
}

// withDefaults garante que todas as variáveis declaradas existam na ativação.
func withDefaults(vars map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"request": map[string]interface{}{},
		"path":    map[string]string{},
		"query":   map[string]string{},
		"header":  map[string]string{},
	}
	for k, v := range vars {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
