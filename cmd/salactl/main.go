package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	goSala "github.com/MrEthical07/goSala"
	"github.com/MrEthical07/goSala/cookiestore"
	"github.com/MrEthical07/goSala/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const usage = `usage: salactl [global flags] <command> [flags]

commands:
  login -u USER [-p PASS]      start a session (password also read from SALA_PASSWORD)
  logout                       end the session
  me                           show the logged user
  status                       show session and token expiry
  livros [--all] [--search S] [--status S]
  livro --id ID                show one book and its availability
  disponiveis                  books that can be lent
  associados [--search S]
  emprestimos [--livro ID] [--associado ID]
  ativos                       active loans
  meus                         loans of the logged member
  emprestar --livro ID --associado ID
  renovar --id ID
  devolver --id ID
  dashboard

global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type globalFlags struct {
	api       string
	cookies   string
	redisAddr string
	logLevel  string
	timeout   time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := goSala.ConfigFromEnv()

	fs := flag.NewFlagSet("salactl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	fs.StringVar(&g.api, "api", cfg.HTTP.BaseURL, "API base URL (SALA_API_URL)")
	fs.StringVar(&g.cookies, "cookies", cfg.Cookies.FilePath, "cookie file; default ~/.sala/cookies.json (SALA_COOKIE_FILE)")
	fs.StringVar(&g.redisAddr, "redis-addr", cfg.Cookies.RedisAddr, "keep cookies in redis instead of a file; \"mem\" starts an in-process redis (SALA_REDIS_ADDR)")
	fs.StringVar(&g.logLevel, "log-level", cfg.Log.Level, "debug, info, warn or error (SALA_LOG_LEVEL)")
	fs.DurationVar(&g.timeout, "timeout", 30*time.Second, "overall command timeout")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	cfg.HTTP.BaseURL = strings.TrimRight(g.api, "/")
	cfg.Log.Level = g.logLevel
	cfg.Log.Format = "text"

	logger := goSala.NewLogger(cfg.Log, stderr)
	sh, cleanup, err := newShell(cfg, g, logger, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := cmd(ctx, sh, cmdArgs); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(stderr, uerr.Error())
			return 2
		}
		fmt.Fprintln(stderr, "Error:", describe(err))
		return 1
	}
	return 0
}

// shell is the terminal stand-in for the web UI: it owns the client, the
// session subscription and the output streams.
type shell struct {
	client *goSala.Client
	out    io.Writer
	errOut io.Writer
}

func newShell(cfg goSala.Config, g globalFlags, logger *slog.Logger, stdout, stderr io.Writer) (*shell, func(), error) {
	builder := goSala.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithNavigator(session.NewMemoryNavigator("/"))

	cleanup := func() {}
	switch g.redisAddr {
	case "":
		path := g.cookies
		if path == "" {
			path = cookiestore.DefaultFilePath()
		}
		builder.WithCookieStore(cookiestore.NewFileStore(path))
	case "mem":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		builder.WithRedis(rdb)
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
	default:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{g.redisAddr}})
		builder.WithRedis(rdb)
		cleanup = func() { _ = rdb.Close() }
	}

	client, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	sh := &shell{client: client, out: stdout, errOut: stderr}
	unsubscribe := client.Session().Subscribe(sh.onSessionEvent)

	return sh, func() {
		unsubscribe()
		client.Close()
		cleanup()
	}, nil
}

func (s *shell) onSessionEvent(ev session.Event) {
	if ev.Kind != session.EventLogout {
		return
	}
	switch ev.Reason {
	case session.ReasonUserLogout:
		fmt.Fprintln(s.errOut, "Sessão encerrada.")
	default:
		fmt.Fprintln(s.errOut, "Sua sessão expirou. Faça login novamente com `salactl login`.")
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

// describe turns client errors into the messages the web UI shows.
func describe(err error) string {
	var herr *goSala.HTTPError
	switch {
	case errors.Is(err, goSala.ErrInvalidCredentials):
		return "usuário ou senha inválidos"
	case errors.Is(err, goSala.ErrRefreshFailed):
		return "sessão expirada"
	case errors.Is(err, goSala.ErrUnauthorized):
		return "não autenticado; use `salactl login`"
	case errors.Is(err, goSala.ErrForbidden):
		return "sem permissão para esta operação"
	case errors.As(err, &herr) && herr.Detail() != "":
		return herr.Detail()
	default:
		return err.Error()
	}
}
