// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"toolloop/internal/agent"
	"toolloop/internal/config"
	apperrors "toolloop/internal/errors"
	"toolloop/internal/llm"
	"toolloop/internal/metrics"
	"toolloop/internal/paths"
	"toolloop/internal/tools"
	systemprompt "toolloop/system_prompt"
)

const usageMessage = "Please provide the contents to generate."

type cliOptions struct {
	verbose      bool
	debug        bool
	confirm      bool
	printExample bool
	printSchema  bool
	configPath   string
	workdir      string
	logFile      string
}

// newModel builds the model client; tests replace it.
var newModel = func(cfg *config.Config, opts ...llm.Option) agent.Model {
	return llm.NewClient(cfg, opts...)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           `toolloop [flags] "<request>"`,
		Short:         "Answer a request with a model that can inspect and change the working directory",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print iterations, tool arguments and token usage")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug logging")
	flags.BoolVar(&opts.confirm, "confirm", false, "Ask before running tools that need confirmation")
	flags.StringVar(&opts.configPath, "config", "config.json", "Path to the JSON or YAML config file")
	flags.StringVar(&opts.workdir, "workdir", "", "Directory the tools operate in (default from config, else .)")
	flags.StringVar(&opts.logFile, "log-file", "", "Append JSON logs to this file")
	flags.BoolVar(&opts.printExample, "print-config-example", false, "Print an example config file and exit")
	flags.BoolVar(&opts.printSchema, "print-config-schema", false, "Print the config file JSON schema and exit")
	return cmd
}

func run(ctx context.Context, opts *cliOptions, args []string, stdout, stderr io.Writer) error {
	switch {
	case opts.printExample:
		fmt.Fprintln(stdout, config.ExampleConfigJSON())
		return nil
	case opts.printSchema:
		fmt.Fprintln(stdout, config.SchemaJSON())
		return nil
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return apperrors.New(apperrors.CodeUsage, usageMessage)
	}

	logger, closer, err := initLogger(opts.debug, opts.logFile)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	workdir := opts.workdir
	if workdir == "" {
		workdir = cfg.Workdir
	}
	if workdir == "" {
		workdir = "."
	}
	root, err := paths.NewRoot(workdir)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "invalid working directory", err)
	}

	registry := tools.NewRegistry(root,
		tools.WithLimits(cfg.ToolLimitsConfig()),
		tools.WithOutputFilters(cfg.ToolOutputFiltersConfig()),
		tools.WithConfirmation(cfg.ConfirmationList()...),
	)
	for _, w := range cfg.Validate(registry) {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}

	m := metrics.New()
	dispatchOpts := []tools.DispatcherOption{
		tools.WithLogger(logger),
		tools.WithRecorder(m),
	}
	if opts.confirm {
		dispatchOpts = append(dispatchOpts, tools.WithApproval(newToolApprover()))
	}
	dispatcher := tools.NewDispatcher(registry, dispatchOpts...)

	model := newModel(cfg, llm.WithLogger(logger), llm.WithRecorder(m))

	trace := &tracePrinter{out: stdout, verbose: opts.verbose}
	trace.userPrompt(prompt)

	driver := agent.NewDriver(model, dispatcher,
		agent.WithSystemPrompt(systemprompt.MustLoad()),
		agent.WithLogger(logger),
		agent.WithEventHandler(trace.handle),
	)

	result, err := driver.Run(ctx, prompt)
	if err != nil {
		m.ObserveRun("error")
		writeMetrics(logger, m, cfg.MetricsTextfile)
		return err
	}
	m.ObserveRun(result.Status.String())
	writeMetrics(logger, m, cfg.MetricsTextfile)

	if result.Status == agent.StatusLoopExceeded {
		warning := apperrors.New(apperrors.CodeLoopExceeded,
			fmt.Sprintf("stopped after %d iterations without a final answer.", result.Iterations))
		logger.Warn().Str("code", string(apperrors.CodeOf(warning))).Msg(warning.Message)
		fmt.Fprintf(stderr, "Warning: %v\n", warning)
		return nil
	}

	fmt.Fprintln(stdout, newAnswerRenderer(stdout)(result.Text))
	return nil
}

func writeMetrics(logger zerolog.Logger, m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
	}
}
