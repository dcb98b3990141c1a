// Package fastendpoints é um front door no estilo Cloud Endpoints, dirigido
// por configuração YAML.
//
// Visão Geral:
// Cada API declarada (nome + versão) vira um conjunto de métodos REST e
// JSON-RPC publicados sob o base path (/_ah/api por padrão). Os métodos são
// implementados por handlers em Go ou encaminhados para um target HTTP.
//
// Sub-Pacotes Principais:
//
// 1. config / engine:
//   - EndpointsConfig carregado de arquivo, s3:// ou dynamodb:// (UniversalLoader).
//   - Injeção de ${env.X}, ${ssm.X} e ${secret.X}; validação via tags.
//   - ServiceEngine monta o runtime e aplica hot reload de forma atômica.
//
// 2. backend / apiconfig:
//   - Backend (SPI) com os serviços registrados e BackendService.getApiConfigs.
//   - Manager indexando os documentos de configuração para roteamento.
//
// 3. dispatcher / discovery:
//   - Roteamento REST, JSON-RPC (single e batch), CORS e redirect do explorer.
//   - Discovery: diretório, documentos rest/rpc e resolução do root (BaseURLResolver).
//
// 4. transport:
//   - Servidor HTTP com correlation id, adaptador API Gateway (Lambda) e
//     reload disparado por mensagens SQS.
//
// Exemplo de Início Rápido:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/raywall/fast-endpoints/pkg/backend"
//		"github.com/raywall/fast-endpoints/pkg/config"
//		"github.com/raywall/fast-endpoints/pkg/engine"
//		"github.com/raywall/fast-endpoints/pkg/transport"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		// 1. Carrega o YAML (apis: items v1, método items.item.get sem target)
//		cfg, err := engine.NewUniversalLoader().Load(ctx, "./endpoints.yaml")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// 2. Implementa em código o método sem target
//		getItem := func(ctx context.Context, req *backend.Request) (any, error) {
//			if req.PathParams["id"] == "" {
//				return nil, backend.NotFound("item inexistente")
//			}
//			return map[string]string{"id": req.PathParams["id"]}, nil
//		}
//
//		svc, err := engine.NewServiceEngine(cfg, "./endpoints.yaml", config.Environment{},
//			engine.WithHandler("items", "v1", "items.item.get", getItem))
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// 3. GET /_ah/api/items/v1/items/{id} e POST /_ah/api/rpc
//		log.Fatal(transport.StartHTTPServer(ctx, svc))
//	}
package fastendpoints
