package rules

import (
	"fmt"

	"github.com/raywall/fast-endpoints/pkg/config"
)

// Violation é a primeira regra que falhou.
type Violation struct {
	RuleID  string
	Code    int
	Message string
}

// Validate avalia as regras em ordem e devolve a primeira violação.
// Um erro indica falha de compilação/execução da expressão, não do dado.
func (rm *RuleManager) Validate(rules []config.ValidationRule, vars map[string]interface{}) (*Violation, error) {
	for _, rule := range rules {
		ok, err := rm.EvaluateBool(rule.Expr, vars)
		if err != nil {
			return nil, fmt.Errorf("falha ao avaliar regra '%s': %w", rule.ID, err)
		}
		if !ok {
			return &Violation{RuleID: rule.ID, Code: rule.OnFail.Code, Message: rule.OnFail.Msg}, nil
		}
	}
	return nil, nil
}
