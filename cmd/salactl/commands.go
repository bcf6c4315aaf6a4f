package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	goSala "github.com/MrEthical07/goSala"
	"github.com/MrEthical07/goSala/jwt"
	"github.com/MrEthical07/goSala/pagination"
)

type command func(ctx context.Context, sh *shell, args []string) error

var commands = map[string]command{
	"login":       cmdLogin,
	"logout":      cmdLogout,
	"me":          cmdMe,
	"status":      cmdStatus,
	"livros":      cmdLivros,
	"livro":       cmdLivro,
	"disponiveis": cmdDisponiveis,
	"associados":  cmdAssociados,
	"emprestimos": cmdEmprestimos,
	"ativos":      cmdAtivos,
	"meus":        cmdMeus,
	"emprestar":   cmdEmprestar,
	"renovar":     cmdRenovar,
	"devolver":    cmdDevolver,
	"dashboard":   cmdDashboard,
}

func newFlagSet(sh *shell, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(sh.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	return nil
}

/*
====================================
SESSION
====================================
*/

func cmdLogin(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "login")
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *pass == "" {
		*pass = os.Getenv("SALA_PASSWORD")
	}
	if *user == "" || *pass == "" {
		return usageError("login requires -u and -p (or SALA_PASSWORD)")
	}

	u, err := sh.client.Login(ctx, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Bem-vindo, %s.\n", displayName(u))
	return nil
}

func cmdLogout(ctx context.Context, sh *shell, _ []string) error {
	return sh.client.Logout(ctx)
}

func cmdMe(ctx context.Context, sh *shell, _ []string) error {
	u, err := sh.client.Me(ctx)
	if err != nil {
		return err
	}
	printUser(sh.out, u)
	return nil
}

func cmdStatus(ctx context.Context, sh *shell, _ []string) error {
	cfg := sh.client.Config()
	fmt.Fprintf(sh.out, "API:\t%s\n", cfg.HTTP.BaseURL)

	now := time.Now()
	for _, name := range []string{cfg.Auth.AccessCookie, cfg.Auth.RefreshCookie} {
		c, ok := sh.client.SessionCookie(name)
		if !ok {
			fmt.Fprintf(sh.out, "%s:\tausente\n", name)
			continue
		}
		claims, err := jwt.Inspect(c.Value)
		switch {
		case err != nil:
			fmt.Fprintf(sh.out, "%s:\tpresente\n", name)
		case claims.Expired(now):
			fmt.Fprintf(sh.out, "%s:\texpirado em %s\n", name, claims.Expiry().Local().Format(time.DateTime))
		default:
			fmt.Fprintf(sh.out, "%s:\tválido por %s\n", name, claims.Remaining(now).Round(time.Second))
		}
	}

	u, err := sh.client.Me(ctx)
	if err != nil {
		fmt.Fprintln(sh.out, "Sessão:\tinativa")
		return nil
	}
	fmt.Fprintf(sh.out, "Sessão:\tativa (%s)\n", displayName(u))
	return nil
}

/*
====================================
LIVROS
====================================
*/

func cmdLivros(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "livros")
	all := fs.Bool("all", false, "follow every page")
	search := fs.String("search", "", "title or author")
	status := fs.String("status", "", "DISPONIVEL, EMPRESTADO, PARA_GUARDAR, DOADO or PERDIDO")
	if err := parse(fs, args); err != nil {
		return err
	}
	st := goSala.LivroStatus(*status)
	if st != "" && !st.Valid() {
		return usageError("unknown status " + *status)
	}

	pager := sh.client.ListLivros(goSala.LivroFilter{Search: *search, Status: st})
	items, err := load(ctx, pager, *all)
	if err != nil {
		return err
	}
	printLivros(sh.out, items)
	printFooter(sh.out, len(items), pager)
	return nil
}

func cmdDisponiveis(ctx context.Context, sh *shell, args []string) error {
	pager := sh.client.LivrosDisponiveis(goSala.LivroFilter{})
	items, err := load(ctx, pager, true)
	if err != nil {
		return err
	}
	printLivros(sh.out, items)
	return nil
}

func cmdLivro(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "livro")
	id := fs.String("id", "", "book id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageError("--id required")
	}

	l, err := sh.client.GetLivro(ctx, *id)
	if err != nil {
		return err
	}
	v, err := sh.client.VerificarLivro(ctx, *id)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", l.ID)
	fmt.Fprintf(tw, "Título:\t%s\n", l.Titulo)
	fmt.Fprintf(tw, "Autor:\t%s\n", l.Autor)
	fmt.Fprintf(tw, "Ano:\t%d\n", l.Ano)
	fmt.Fprintf(tw, "Status:\t%s\n", l.Status.Label())
	fmt.Fprintf(tw, "Pode ser emprestado:\t%s\n", simNao(v.PodeSerEmprestado))
	if v.EmprestimoAtivo != nil {
		fmt.Fprintf(tw, "Com:\t%s até %s\n", v.EmprestimoAtivo.AssociadoNome, v.EmprestimoAtivo.DataPrevista)
	}
	return tw.Flush()
}

/*
====================================
ASSOCIADOS
====================================
*/

func cmdAssociados(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "associados")
	search := fs.String("search", "", "name")
	all := fs.Bool("all", false, "follow every page")
	if err := parse(fs, args); err != nil {
		return err
	}

	pager := sh.client.ListAssociados(goSala.AssociadoFilter{Nome: *search})
	items, err := load(ctx, pager, *all)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOME\tATIVO\tGERENTE\tUSUÁRIO")
	for _, a := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Nome, simNao(a.EstaAtivo), simNao(a.Gerente), a.Username)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printFooter(sh.out, len(items), pager)
	return nil
}

/*
====================================
EMPRESTIMOS
====================================
*/

func cmdEmprestimos(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "emprestimos")
	livro := fs.String("livro", "", "book id")
	associado := fs.Int64("associado", 0, "member id")
	all := fs.Bool("all", false, "follow every page")
	if err := parse(fs, args); err != nil {
		return err
	}

	pager := sh.client.ListEmprestimos(goSala.EmprestimoFilter{Livro: *livro, Associado: *associado})
	items, err := load(ctx, pager, *all)
	if err != nil {
		return err
	}
	printEmprestimos(sh.out, items)
	printFooter(sh.out, len(items), pager)
	return nil
}

func cmdAtivos(ctx context.Context, sh *shell, _ []string) error {
	items, err := load(ctx, sh.client.EmprestimosAtivos(), true)
	if err != nil {
		return err
	}
	printEmprestimos(sh.out, items)
	return nil
}

func cmdMeus(ctx context.Context, sh *shell, _ []string) error {
	items, err := sh.client.EmprestimosMe(ctx)
	if err != nil {
		return err
	}
	printEmprestimos(sh.out, items)
	return nil
}

func cmdEmprestar(ctx context.Context, sh *shell, args []string) error {
	fs := newFlagSet(sh, "emprestar")
	livro := fs.String("livro", "", "book id")
	associado := fs.Int64("associado", 0, "member id")
	prevista := fs.String("ate", "", "due date YYYY-MM-DD; backend default is seven days")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *livro == "" || *associado == 0 {
		return usageError("emprestar requires --livro and --associado")
	}
	if *prevista != "" {
		if _, err := time.Parse(goSala.DateLayout, *prevista); err != nil {
			return usageError("--ate must be YYYY-MM-DD")
		}
	}

	e, err := sh.client.CreateEmprestimo(ctx, goSala.EmprestimoInput{
		Livro:        *livro,
		Associado:    *associado,
		DataPrevista: *prevista,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Empréstimo %d registrado; devolução prevista em %s.\n", e.ID, e.DataPrevista)
	return nil
}

func cmdRenovar(ctx context.Context, sh *shell, args []string) error {
	id, err := emprestimoID(sh, "renovar", args)
	if err != nil {
		return err
	}
	e, err := sh.client.RenovarEmprestimo(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Empréstimo %d renovado até %s.\n", e.ID, e.DataPrevista)
	return nil
}

func cmdDevolver(ctx context.Context, sh *shell, args []string) error {
	id, err := emprestimoID(sh, "devolver", args)
	if err != nil {
		return err
	}
	e, err := sh.client.DevolverEmprestimo(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Empréstimo %d devolvido.\n", e.ID)
	return nil
}

func emprestimoID(sh *shell, name string, args []string) (int64, error) {
	fs := newFlagSet(sh, name)
	id := fs.Int64("id", 0, "loan id")
	if err := parse(fs, args); err != nil {
		return 0, err
	}
	if *id <= 0 {
		return 0, usageError("--id required")
	}
	return *id, nil
}

func cmdDashboard(ctx context.Context, sh *shell, _ []string) error {
	d, err := sh.client.DashboardStats(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(sh.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Livros\t%d\tdisponíveis %d\temprestados %d\n", d.Livros.Total, d.Livros.Disponiveis, d.Livros.Emprestados)
	fmt.Fprintf(tw, "Empréstimos\t%d ativos\tatrasados %d\t\n", d.Emprestimos.Ativos, d.Emprestimos.Atrasados)
	fmt.Fprintf(tw, "Associados\t%d\tativos %d\t\n", d.Associados.Total, d.Associados.Ativos)
	return tw.Flush()
}

/*
====================================
OUTPUT
====================================
*/

func load[T any](ctx context.Context, p *pagination.Pager[T], all bool) ([]T, error) {
	if all {
		return p.All(ctx)
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	return p.Items(), nil
}

func printFooter[T any](w io.Writer, shown int, p *pagination.Pager[T]) {
	if p.HasNext() {
		fmt.Fprintf(w, "%d de %d (use --all para carregar tudo)\n", shown, p.Count())
		return
	}
	fmt.Fprintf(w, "%d registro(s)\n", shown)
}

func printLivros(w io.Writer, items []goSala.Livro) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTÍTULO\tAUTOR\tANO\tSTATUS")
	for _, l := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", l.ID, l.Titulo, l.Autor, l.Ano, l.Status.Label())
	}
	_ = tw.Flush()
}

func printEmprestimos(w io.Writer, items []goSala.Emprestimo) {
	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLIVRO\tASSOCIADO\tEMPRESTADO\tPREVISTA\tSITUAÇÃO")
	for _, e := range items {
		situacao := "ativo"
		switch {
		case !e.Ativo():
			situacao = "devolvido em " + *e.DataDevolucao
		case e.Atrasado(now):
			situacao = "ATRASADO"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, orDefault(e.LivroTitulo, e.Livro), orDefault(e.AssociadoNome, strconv.FormatInt(e.Associado, 10)),
			e.DataEmprestimo, e.DataPrevista, situacao)
	}
	_ = tw.Flush()
}

func printUser(w io.Writer, u *goSala.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", u.ID)
	fmt.Fprintf(tw, "Nome:\t%s\n", displayName(u))
	fmt.Fprintf(tw, "E-mail:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Gerente:\t%s\n", simNao(u.Staff()))
	fmt.Fprintf(tw, "Administrador:\t%s\n", simNao(u.Admin()))
	_ = tw.Flush()
}

func displayName(u *goSala.User) string {
	return orDefault(u.Name, u.Email)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func simNao(b bool) string {
	if b {
		return "sim"
	}
	return "não"
}
