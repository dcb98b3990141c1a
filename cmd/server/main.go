package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/engine"
	"github.com/raywall/fast-endpoints/pkg/transport"
)

var (
	// Variáveis injetáveis para mocking
	serverStarter = transport.StartHTTPServer
	lambdaStarter = func(h interface{}) { lambda.Start(h) }
	reloaderStart = startReloader
)

func main() {
	var rt config.RuntimeEnv
	if err := config.LoadEnv(&rt); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	// A validação ocorre aqui para não quebrar os testes unitários
	if rt.ConfigPath == "" {
		log.Fatalln("FATAL: CONFIG_FILE_PATH não informado")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, rt); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// run contém a lógica principal testável
func run(ctx context.Context, rt config.RuntimeEnv) error {
	// 1. Carrega Configuração (Loader)
	loader := engine.NewUniversalLoader()
	if rt.AWSRegion != "" && loader.Region == "" {
		loader.Region = rt.AWSRegion
	}
	cfg, err := loader.Load(ctx, rt.ConfigPath)
	if err != nil {
		return err
	}
	if rt.Port != 0 {
		cfg.Server.Port = rt.Port
	}

	// 2. Inicializa Engine (Boot Time)
	env := config.ResolveEnvironment(cfg.Server.Environment, rt)
	svcEngine, err := engine.NewServiceEngine(cfg, rt.ConfigPath, env, engine.WithLoader(loader))
	if err != nil {
		return err
	}

	// 3. Hot reload (opcional)
	if queue := cfg.Server.HotReload.SQSQueueURL; queue != "" {
		if err := reloaderStart(ctx, loader.Region, queue, svcEngine); err != nil {
			return err
		}
	}

	// 4. Seleciona Runtime Strategy
	switch cfg.Server.Runtime {
	case "local", "ec2", "ecs", "eks":
		return serverStarter(ctx, svcEngine)
	case "lambda":
		handler := transport.NewLambdaHandler(svcEngine)
		lambdaStarter(handler.Handle)
		return nil
	default:
		return fmt.Errorf("runtime desconhecido: %s", cfg.Server.Runtime)
	}
}

func startReloader(ctx context.Context, region, queue string, svc *engine.ServiceEngine) error {
	reloader, err := transport.NewSQSReloaderFromRegion(ctx, region, queue, svc)
	if err != nil {
		return err
	}
	go reloader.WithLogger(svc.Logger).Start(ctx)
	return nil
}
