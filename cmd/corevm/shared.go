package main

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/urfave/cli/v3"

	"corevm/internal/bytecode"
	"corevm/internal/casm"
	"corevm/internal/config"
	"corevm/internal/debugevent"
	"corevm/internal/moduleloader"
	"corevm/internal/vm"
)

// commonFlags are shared by run, asm and repl: where to read VM tunables
// from, and which module registry to resolve imports against.
var commonFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Usage: "path to a TOML config file (see internal/config.Config)"},
	&cli.StringFlag{Name: "modules", Usage: "module registry: \"none\" (default) or \"dynamodb\""},
	&cli.StringFlag{Name: "dynamo-table", Value: "corevm-modules", Usage: "DynamoDB table name when --modules=dynamodb"},
	&cli.StringFlag{Name: "dynamo-access-key", Usage: "static AWS access key for --modules=dynamodb (requires --dynamo-secret-key)"},
	&cli.StringFlag{Name: "dynamo-secret-key", Usage: "static AWS secret key for --modules=dynamodb (requires --dynamo-access-key)"},
}

// loadImage reads and assembles a .casm file into a BytecodeImage.
func loadImage(path string) (*bytecode.BytecodeImage, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := casm.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", path, err)
	}
	return img, nil
}

// vmOptions turns a command's shared flags into VM construction options:
// config file, module registry, and a debug sink gated on cfg.DebugEnabled.
func vmOptions(ctx context.Context, cmd *cli.Command) ([]vm.Option, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}

	opts := []vm.Option{vm.WithConfig(cfg)}

	if cfg.DebugEnabled {
		opts = append(opts, vm.WithDebugSink(debugevent.NewChannelSink(4096)))
	}

	switch cmd.String("modules") {
	case "", "none":
	case "dynamodb":
		var awsOpts []awsconfig.LoadOptionsFunc
		accessKey, secretKey := cmd.String("dynamo-access-key"), cmd.String("dynamo-secret-key")
		if accessKey != "" || secretKey != "" {
			if accessKey == "" || secretKey == "" {
				return nil, fmt.Errorf("--dynamo-access-key and --dynamo-secret-key must be set together")
			}
			provider := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
			awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(provider))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		opts = append(opts, vm.WithLoader(moduleloader.NewDynamoLoader(client, cmd.String("dynamo-table"))))
	default:
		return nil, fmt.Errorf("unknown --modules value %q (want \"none\" or \"dynamodb\")", cmd.String("modules"))
	}

	return opts, nil
}
