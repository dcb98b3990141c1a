package engine

import (
	"fmt"
	"strings"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/proxy"
	"github.com/raywall/fast-endpoints/pkg/rules"
)

// ValidationReport contém o resultado detalhado da análise.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	APIs     []string `json:"apis,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Analyze realiza uma inspeção profunda na configuração, além do que o
// validator estrutural já cobre.
func Analyze(cfg *config.EndpointsConfig) (*ValidationReport, error) {
	if cfg == nil {
		return nil, ErrNoConfig
	}
	report := &ValidationReport{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}

	// 1. Inicializa dependências necessárias para checagem (compilador CEL)
	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, fmt.Errorf("falha interna ao iniciar analisador de regras: %w", err)
	}

	apis := make([]apiconfig.API, 0, len(cfg.APIs))
	for _, api := range cfg.APIs {
		key := api.Name + ":" + api.Version
		report.APIs = append(report.APIs, key)
		apis = append(apis, apiconfig.FromConfig(api))

		if api.Hostname == "" {
			report.Warnings = append(report.Warnings, fmt.Sprintf("API[%s]: sem hostname, documentos remotos usarão o host da requisição", key))
		}

		for _, m := range api.Methods {
			// 2. Regras CEL
			for _, rule := range m.Validations {
				if _, err := rm.CompileProgram(rule.Expr); err != nil {
					report.Errors = append(report.Errors, fmt.Sprintf("API[%s].%s.Rule[%s]: Erro CEL: %v", key, m.Name, rule.ID, err))
				}
			}

			// 3. Implementação: sem target o método depende de um handler em código
			if m.Target.URL == "" {
				report.Warnings = append(report.Warnings, fmt.Sprintf("API[%s].%s: sem target, exige handler registrado no boot", key, m.Name))
				continue
			}

			// 4. Parâmetros do target precisam existir no path
			declared := make(map[string]string)
			for _, p := range config.PathParams(m.Path) {
				declared[p] = "x"
			}
			if expanded := proxy.ExpandURL(m.Target.URL, declared); strings.Contains(expanded, "{") {
				report.Errors = append(report.Errors, fmt.Sprintf("API[%s].%s: target '%s' usa parâmetros ausentes do path '%s'", key, m.Name, m.Target.URL, m.Path))
			}
		}
	}

	// 5. Registry: as mesmas regras de roteamento do boot
	if err := apiconfig.NewManager().ProcessAPIs(apis); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Registry: %v", err))
	}

	if len(report.Errors) > 0 {
		report.Valid = false
	}

	return report, nil
}
