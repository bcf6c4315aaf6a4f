package goSala

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goSala/pagination"
)

const emprestimosPath = "/api/emprestimos/"

// EmprestimoFilter narrows ListEmprestimos to one book or one member.
type EmprestimoFilter struct {
	Livro     string
	Associado int64
}

func (f EmprestimoFilter) values() url.Values {
	v := url.Values{}
	if f.Livro != "" {
		v.Set("livro", f.Livro)
	}
	if f.Associado != 0 {
		v.Set("associado", strconv.FormatInt(f.Associado, 10))
	}
	return v
}

func (c *Client) ListEmprestimos(filter EmprestimoFilter) *pagination.Pager[Emprestimo] {
	return newPager[Emprestimo](c, emprestimosPath, filter.values())
}

// EmprestimosAtivos returns a pager over loans not yet returned.
func (c *Client) EmprestimosAtivos() *pagination.Pager[Emprestimo] {
	return newPager[Emprestimo](c, emprestimosPath+"ativos/", nil)
}

// EmprestimosMe lists the loans of the member linked to the logged user.
// The endpoint may answer a bare array or a paginated envelope; every page
// is followed.
func (c *Client) EmprestimosMe(ctx context.Context) ([]Emprestimo, error) {
	return newPager[Emprestimo](c, emprestimosPath+"me/", nil).All(ctx)
}

func (c *Client) GetEmprestimo(ctx context.Context, id int64) (*Emprestimo, error) {
	var out Emprestimo
	if err := c.GetJSON(ctx, emprestimoPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEmprestimo lends a book. The backend rejects books that are not
// available with a 400 whose Detail names the field.
func (c *Client) CreateEmprestimo(ctx context.Context, in EmprestimoInput) (*Emprestimo, error) {
	if in.Livro == "" || in.Associado == 0 {
		return nil, fmt.Errorf("%w: livro and associado are required", ErrInvalidRequest)
	}
	var out Emprestimo
	if err := c.SendJSON(ctx, http.MethodPost, emprestimosPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenovarEmprestimo extends the due date of an active loan.
func (c *Client) RenovarEmprestimo(ctx context.Context, id int64) (*Emprestimo, error) {
	return c.emprestimoAction(ctx, id, "renovar/")
}

// DevolverEmprestimo registers the return of the book.
func (c *Client) DevolverEmprestimo(ctx context.Context, id int64) (*Emprestimo, error) {
	return c.emprestimoAction(ctx, id, "devolver/")
}

func (c *Client) emprestimoAction(ctx context.Context, id int64, action string) (*Emprestimo, error) {
	var out Emprestimo
	if err := c.SendJSON(ctx, http.MethodPost, emprestimoPath(id)+action, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func emprestimoPath(id int64) string {
	return resourcePath(emprestimosPath, strconv.FormatInt(id, 10))
}
