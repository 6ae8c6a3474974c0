package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/lox/drawsolver/cmd/solver/shared"
	"github.com/lox/drawsolver/internal/config"
)

// version is set by ldflags during build
var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Debug    bool   `help:"enable debug logging"`
	JSONLogs bool   `name:"json-logs" help:"log JSON lines instead of console output"`
	Config   string `help:"HCL or TOML config file; missing files use defaults" type:"path" default:"drawsolver.hcl"`
	EnvFile  string `name:"env-file" help:"dotenv file loaded before reading the environment" type:"path" default:".env"`
}

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Train   TrainCmd         `cmd:"" help:"run MCCFR training and emit a blueprint"`
	Discard DiscardCmd       `cmd:"" help:"solve the best discard for every canonical lowball hand"`
	Merge   MergeCmd         `cmd:"" help:"sum per-worker regret tables"`
	Compact CompactCmd       `cmd:"" help:"merge NDJSON tables, first writer wins"`
	Policy  PolicyCmd        `cmd:"" help:"inspect a blueprint and its regrets"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("solver"),
		kong.Description("Lowball draw and CFR solver tooling"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// setup builds the logger and the effective configuration: file values,
// then environment overrides.
func (g *Globals) setup() (zerolog.Logger, *config.Config, error) {
	logger := shared.SetupLogger(g.Debug, g.JSONLogs)

	if err := config.LoadDotEnv(g.EnvFile); err != nil {
		return logger, nil, err
	}
	cfg, err := config.Load(g.Config)
	if err != nil {
		return logger, nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return logger, nil, err
	}
	logger.Debug().Str("config", g.Config).Str("store", cfg.Store.Backend).Msg("configuration loaded")
	return logger, cfg, nil
}
