package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/raywall/fast-endpoints/pkg/apiconfig"
	"github.com/raywall/fast-endpoints/pkg/config"
	"github.com/raywall/fast-endpoints/pkg/discovery"
	"github.com/raywall/fast-endpoints/pkg/dispatcher"
	"github.com/raywall/fast-endpoints/pkg/engine"
)

const usage = "Comandos esperados: validate | explorer | config"

func main() {
	os.Exit(runCLI(os.Args[1:], os.Stdout, os.Stderr))
}

// runCLI devolve o exit code, para que os testes não dependam de os.Exit.
func runCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	var err error
	switch args[0] {
	case "validate":
		err = runValidate(args[1:], stdout)
	case "explorer":
		err = runExplorer(args[1:], stdout)
	case "config":
		err = runConfig(args[1:], stdout)
	default:
		err = fmt.Errorf("comando desconhecido: %s\n%s", args[0], usage)
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}
	return 0
}

func runValidate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	filePtr := fs.String("file", "", "Caminho do arquivo YAML ou S3/DynamoDB URI")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *filePtr == "" {
		return fmt.Errorf("flag -file é obrigatória")
	}

	// 1. Load (Validação Estrutural)
	cfg, err := engine.NewUniversalLoader().Load(context.Background(), *filePtr)
	if err != nil {
		return fmt.Errorf("erro de carregamento/estrutura:\n%v", err)
	}

	// 2. Analyze (Validação Lógica/Semântica)
	report, err := engine.Analyze(cfg)
	if err != nil {
		return fmt.Errorf("erro interno do analisador: %w", err)
	}

	// Output JSON para integração com ferramentas de CI
	if os.Getenv("OUTPUT_FORMAT") == "json" {
		raw, _ := json.Marshal(report)
		fmt.Fprintln(out, string(raw))
	} else {
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "⚠️  %s\n", w)
		}
	}

	if !report.Valid {
		msg := "a configuração contém erros lógicos:"
		for _, e := range report.Errors {
			msg += "\n - " + e
		}
		return fmt.Errorf("%s", msg)
	}

	if os.Getenv("OUTPUT_FORMAT") != "json" {
		fmt.Fprintf(out, "✅ Configuração válida: %d API(s) prontas para deploy\n", len(report.APIs))
	}
	return nil
}

func runExplorer(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("explorer", flag.ContinueOnError)
	server := fs.String("server", "localhost", "Host do servidor")
	port := fs.Int("port", 8080, "Porta do servidor")
	base := fs.String("base", config.DefaultBasePath, "Base path das APIs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintln(out, dispatcher.ExplorerRedirectURL(*server, *port, *base))
	return nil
}

func runConfig(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	filePtr := fs.String("file", "", "Caminho do arquivo YAML ou S3/DynamoDB URI")
	apiName := fs.String("api", "", "Nome da API")
	version := fs.String("version", "", "Versão da API")
	server := fs.String("server", "localhost", "Host usado no root")
	port := fs.String("port", "8080", "Porta usada no root")
	scheme := fs.String("scheme", "http", "Esquema usado no root")
	local := fs.Bool("local", true, "Geração local (root sempre reflete server/port)")
	format := fs.String("format", "config", "config | rest | rpc")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *filePtr == "" || *apiName == "" || *version == "" {
		return fmt.Errorf("flags -file, -api e -version são obrigatórias")
	}

	cfg, err := engine.NewUniversalLoader().Load(context.Background(), *filePtr)
	if err != nil {
		return err
	}

	var api *config.APIConf
	for i := range cfg.APIs {
		if cfg.APIs[i].Name == *apiName && cfg.APIs[i].Version == *version {
			api = &cfg.APIs[i]
			break
		}
	}
	if api == nil {
		return fmt.Errorf("%w: %s:%s", apiconfig.ErrAPINotFound, *apiName, *version)
	}

	var rt config.RuntimeEnv
	if err := config.LoadEnv(&rt); err != nil {
		return err
	}
	env := config.ResolveEnvironment(cfg.Server.Environment, rt)
	resolver := discovery.BaseURLResolver{Env: env, BasePath: cfg.Server.GetBasePath()}
	root := resolver.Resolve(*server, *port, *scheme, *local, api.Hostname)
	doc := apiconfig.NewGenerator().Generate(apiconfig.FromConfig(*api), root)

	var raw []byte
	switch *format {
	case "config":
		raw, err = doc.PrettyJSON()
	case discovery.FormatRest:
		raw, err = json.MarshalIndent(discovery.BuildRestDescription(doc), "", "  ")
	case discovery.FormatRPC:
		raw, err = json.MarshalIndent(discovery.BuildRPCDescription(doc), "", "  ")
	default:
		return fmt.Errorf("%w: %s", discovery.ErrUnknownFormat, *format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(raw))
	return nil
}
