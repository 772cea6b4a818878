package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"
)

// executor 执行一条命令并返回退出码。
type executor func(ctx context.Context, args []string) int

// globalFlagNames shell 中转发给每条命令的全局 flag。
var globalFlagNames = []string{"config", "base-url", "insecure", "token-file", "key-file", "timeout", "log-level"}

func createShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "交互模式，每行执行一条命令，令牌在命令间共享",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			out, errOut := outWriter(cmd), errWriter(cmd)
			globals := globalArgs(cmd)
			exec := func(ctx context.Context, args []string) int {
				app := createApp()
				app.Writer, app.ErrWriter = out, errOut
				// 交互输入由 REPL 独占，命令内不再提示
				app.Reader = strings.NewReader("")
				full := append(append([]string{"xadminctl"}, globals...), args...)
				return exitCode(app.Run(ctx, full), errOut)
			}

			_, _ = fmt.Fprintln(out, "xadminctl 交互模式")
			_, _ = fmt.Fprintln(out, "输入 'help' 查看可用命令，'quit' 或 'exit' 退出")
			return runREPL(ctx, inReader(cmd), out, errOut, exec)
		},
	}
}

// globalArgs 把已设置的全局 flag 还原为参数。
func globalArgs(cmd *cli.Command) []string {
	var args []string
	for _, name := range globalFlagNames {
		if !cmd.IsSet(name) {
			continue
		}
		switch name {
		case "insecure":
			if cmd.Bool(name) {
				args = append(args, "--insecure")
			}
		case "timeout":
			args = append(args, "--timeout="+cmd.Duration(name).String())
		default:
			args = append(args, "--"+name+"="+cmd.String(name))
		}
	}
	return args
}

// startInputReader 启动输入读取 goroutine，ctx 取消后不再阻塞在发送端。
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
		close(inputCh)
	}()

	return inputCh, errCh
}

// runREPL 运行交互循环，EOF、quit/exit 或 ctx 取消时返回。
func runREPL(ctx context.Context, in io.Reader, out, errOut io.Writer, exec executor) error {
	inputCh, errCh := startInputReader(ctx, in)

	for {
		_, _ = fmt.Fprint(out, "xadmin> ")

		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out, "\n再见!")
			return nil
		case err := <-errCh:
			return fmt.Errorf("读取输入错误: %w", err)
		case line, ok := <-inputCh:
			if !ok {
				_, _ = fmt.Fprintln(out)
				return nil
			}
			if processLine(ctx, out, errOut, exec, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// processLine 处理单行输入，返回 true 表示退出。
func processLine(ctx context.Context, out, errOut io.Writer, exec executor, line string) bool {
	if line == "" {
		return false
	}
	if line == "quit" || line == "exit" {
		_, _ = fmt.Fprintln(out, "再见!")
		return true
	}

	parts := parseCommandLine(line)
	if len(parts) == 0 {
		return false
	}
	if parts[0] == "shell" || parts[0] == "repl" {
		_, _ = fmt.Fprintln(errOut, "已在交互模式中")
		return false
	}
	if code := exec(ctx, parts); code != 0 {
		_, _ = fmt.Fprintf(errOut, "[退出码 %d]\n", code)
	}
	return false
}

// parseCommandLine 解析命令行，支持引号和反斜杠转义。
func parseCommandLine(line string) []string {
	var parts []string
	var current strings.Builder
	var inQuote bool
	var quoteChar rune
	var escaped bool

	for _, r := range line {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}

		switch {
		case isQuoteStart(r, inQuote):
			inQuote = true
			quoteChar = r
		case isQuoteEnd(r, quoteChar, inQuote):
			inQuote = false
			quoteChar = 0
		case isWordSeparator(r, inQuote):
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isQuoteStart(r rune, inQuote bool) bool {
	return (r == '"' || r == '\'') && !inQuote
}

func isQuoteEnd(r, quoteChar rune, inQuote bool) bool {
	return r == quoteChar && inQuote
}

// isWordSeparator 空格与 Tab 均分词。
func isWordSeparator(r rune, inQuote bool) bool {
	return (r == ' ' || r == '\t') && !inQuote
}
