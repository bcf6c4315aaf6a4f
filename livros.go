package goSala

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goSala/pagination"
)

const livrosPath = "/api/livros/"

// LivroFilter narrows ListLivros. Zero fields are not sent.
type LivroFilter struct {
	Search   string
	Status   LivroStatus
	Ordering string
}

func (f LivroFilter) values() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.Ordering != "" {
		v.Set("ordering", f.Ordering)
	}
	return v
}

// ListLivros returns a pager over the whole collection.
func (c *Client) ListLivros(filter LivroFilter) *pagination.Pager[Livro] {
	return newPager[Livro](c, livrosPath, filter.values())
}

// LivrosDisponiveis returns a pager over the books that can be lent now.
func (c *Client) LivrosDisponiveis(filter LivroFilter) *pagination.Pager[Livro] {
	return newPager[Livro](c, livrosPath+"disponiveis/", filter.values())
}

// LivrosEmprestados returns a pager over the books currently lent.
func (c *Client) LivrosEmprestados(filter LivroFilter) *pagination.Pager[Livro] {
	return newPager[Livro](c, livrosPath+"emprestados/", filter.values())
}

func (c *Client) GetLivro(ctx context.Context, id string) (*Livro, error) {
	var out Livro
	if err := c.GetJSON(ctx, resourcePath(livrosPath, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLivro registers a book. Staff only.
func (c *Client) CreateLivro(ctx context.Context, in LivroInput) (*Livro, error) {
	var out Livro
	if err := c.SendJSON(ctx, http.MethodPost, livrosPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLivro replaces every writable field of a book. Staff only.
func (c *Client) UpdateLivro(ctx context.Context, id string, in LivroInput) (*Livro, error) {
	var out Livro
	if err := c.SendJSON(ctx, http.MethodPut, resourcePath(livrosPath, id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteLivro(ctx context.Context, id string) error {
	_, err := c.Delete(ctx, resourcePath(livrosPath, id))
	return err
}

// VerificarLivro asks the backend whether the book can be lent.
func (c *Client) VerificarLivro(ctx context.Context, id string) (*VerificacaoLivro, error) {
	var out VerificacaoLivro
	if err := c.GetJSON(ctx, resourcePath(livrosPath, id)+"verificar/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func newPager[T any](c *Client, path string, params url.Values) *pagination.Pager[T] {
	return pagination.NewPager[T](c, path, params,
		pagination.WithErrorMessage(c.config.Pagination.ErrorMessage))
}

// resourcePath returns collection + escaped id + "/".
func resourcePath(collection, id string) string {
	return collection + url.PathEscape(id) + "/"
}
