package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/riverbaby/sh"
)

type RunCmd struct {
	Cmd  string   `arg:"" help:"executable to run"`
	Args []string `arg:"" optional:"" help:"arguments passed to the executable, unquoted and unexpanded"`
	Cwd  string   `help:"working directory for the child process"`
}

func (c *RunCmd) Run(cliCtx *Context) error {
	tpl, err := sh.NewCommand(c.Cmd)
	if err != nil {
		return err
	}
	callArgs := make([]any, 0, len(c.Args)+1)
	for _, a := range c.Args {
		callArgs = append(callArgs, a)
	}
	if c.Cwd != "" {
		callArgs = append(callArgs, sh.Cwd(c.Cwd))
	}
	out, err := tpl.Call(cliCtx.ctx, callArgs...)
	if err != nil {
		if exitErr, ok := err.(*sh.ExitError); ok {
			fmt.Fprint(os.Stdout, out.String())
			return exitErr
		}
		return err
	}
	fmt.Fprint(os.Stdout, out.String())
	return nil
}

type PipeCmd struct {
	From string `arg:"" help:"producer executable"`
	To   string `arg:"" help:"consumer executable"`
}

func (c *PipeCmd) Run(cliCtx *Context) error {
	producer, err := sh.NewCommand(c.From)
	if err != nil {
		return err
	}
	consumer, err := sh.NewCommand(c.To)
	if err != nil {
		return err
	}
	upstream, err := producer.Call(cliCtx.ctx, sh.Piped())
	if err != nil {
		return err
	}
	out, err := consumer.Call(cliCtx.ctx, upstream)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, out.String())
	return nil
}

type CLI struct {
	LogLevel string `default:"info" placeholder:"<debug|info|warn|error>" help:"logging level"`

	Run  RunCmd  `cmd:"" help:"run a single command and print its stdout"`
	Pipe PipeCmd `cmd:"" help:"pipe the stdout of one command into another, without a shell"`
}

type Context struct {
	ctx context.Context
}

func initSlog(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Description("shx runs external commands as procedure calls, without a shell."))
	initSlog(cli.LogLevel)

	err := kctx.Run(&Context{ctx: context.Background()})
	kctx.FatalIfErrorf(err)
}
