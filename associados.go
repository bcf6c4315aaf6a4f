package goSala

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goSala/pagination"
)

const associadosPath = "/api/associados/"

// AssociadoFilter narrows ListAssociados.
type AssociadoFilter struct {
	Nome    string
	Gerente *bool
}

func (f AssociadoFilter) values() url.Values {
	v := url.Values{}
	if f.Nome != "" {
		v.Set("search", f.Nome)
	}
	if f.Gerente != nil {
		v.Set("gerente", strconv.FormatBool(*f.Gerente))
	}
	return v
}

func (c *Client) ListAssociados(filter AssociadoFilter) *pagination.Pager[Associado] {
	return newPager[Associado](c, associadosPath, filter.values())
}

func (c *Client) GetAssociado(ctx context.Context, id int64) (*Associado, error) {
	var out Associado
	if err := c.GetJSON(ctx, associadoPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAssociado registers a member, and the linked login user when
// in carries both Username and Password.
func (c *Client) CreateAssociado(ctx context.Context, in AssociadoInput) (*Associado, error) {
	if (in.Username == "") != (in.Password == "") {
		return nil, fmt.Errorf("%w: username and password go together", ErrInvalidRequest)
	}
	var out Associado
	if err := c.SendJSON(ctx, http.MethodPost, associadosPath, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAssociado applies a partial update.
func (c *Client) UpdateAssociado(ctx context.Context, id int64, patch AssociadoPatch) (*Associado, error) {
	var out Associado
	if err := c.SendJSON(ctx, http.MethodPatch, associadoPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAssociado(ctx context.Context, id int64) error {
	_, err := c.Delete(ctx, associadoPath(id))
	return err
}

// VincularUsuario links an existing login user to the member.
func (c *Client) VincularUsuario(ctx context.Context, id, userID int64) error {
	_, err := c.Post(ctx, associadoPath(id)+"vincular-usuario/", map[string]int64{"user_id": userID})
	return err
}

// ResetarSenha sets a new password on the member's login user.
func (c *Client) ResetarSenha(ctx context.Context, id int64, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidRequest)
	}
	_, err := c.Post(ctx, associadoPath(id)+"resetar-senha/", map[string]string{"password": password})
	return err
}

func associadoPath(id int64) string {
	return resourcePath(associadosPath, strconv.FormatInt(id, 10))
}
