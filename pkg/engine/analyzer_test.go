package engine

import (
	"testing"

	"github.com/raywall/fast-endpoints/pkg/config"
)

func TestAnalyze_Detection(t *testing.T) {
	// Config com erro de sintaxe CEL e target quebrado intencionais
	cfg := &config.EndpointsConfig{
		Version: "1.0",
		Server:  config.ServerConf{Name: "analyze", Runtime: "local", Port: 8080},
		APIs: []config.APIConf{{
			Name:    "items",
			Version: "v1",
			Methods: []config.MethodConf{
				{
					Name: "items.item.insert", Path: "items", HTTPMethod: "POST",
					Validations: []config.ValidationRule{
						{ID: "rule1", Expr: "request.valor > "}, // ERRO: Expressão incompleta
					},
				},
				{
					Name: "items.item.get", Path: "items/{id}", HTTPMethod: "GET",
					Target: config.TargetConf{URL: "http://svc/items/{itemId}"}, // ERRO
				},
			},
		}},
	}

	report, err := Analyze(cfg)
	if err != nil {
		t.Fatalf("Erro inesperado: %v", err)
	}

	if report.Valid {
		t.Error("Deveria ser inválido devido aos erros")
	}

	if len(report.Errors) != 2 {
		t.Errorf("Esperado 2 erros, encontrados %d: %v", len(report.Errors), report.Errors)
	}

	// Sem hostname + método sem target
	if len(report.Warnings) != 2 {
		t.Errorf("Esperado 2 warnings, encontrados %d: %v", len(report.Warnings), report.Warnings)
	}
}

func TestAnalyze_Valid(t *testing.T) {
	cfg := &config.EndpointsConfig{
		Version: "1.0",
		Server:  config.ServerConf{Name: "analyze", Runtime: "local", Port: 8080},
		APIs: []config.APIConf{{
			Name:     "items",
			Version:  "v1",
			Hostname: "items.example.com",
			Methods: []config.MethodConf{{
				Name: "items.item.get", Path: "items/{id}", HTTPMethod: "GET",
				Target:      config.TargetConf{URL: "http://svc/items/{id}"},
				Validations: []config.ValidationRule{{ID: "num", Expr: "path.id.matches('^[0-9]+$')"}},
			}},
		}},
	}

	report, err := Analyze(cfg)
	if err != nil {
		t.Fatalf("Erro inesperado: %v", err)
	}
	if !report.Valid || len(report.Warnings) != 0 {
		t.Errorf("Relatório inesperado: %+v", report)
	}
	if len(report.APIs) != 1 || report.APIs[0] != "items:v1" {
		t.Errorf("APIs inesperadas: %v", report.APIs)
	}

	if _, err := Analyze(nil); err == nil {
		t.Error("Esperava erro para config nil")
	}
}
