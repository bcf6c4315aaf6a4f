package goSala

import (
	"encoding/json"
	"time"

	"github.com/MrEthical07/goSala/session"
)

// User is the authenticated user returned by the me endpoint.
type User = session.User

// DateLayout is the wire format of every date field of the API.
const DateLayout = time.DateOnly

// LivroStatus represents the lifecycle state of a book.
type LivroStatus string

const (
	LivroDisponivel  LivroStatus = "DISPONIVEL"
	LivroEmprestado  LivroStatus = "EMPRESTADO"
	LivroParaGuardar LivroStatus = "PARA_GUARDAR"
	LivroDoado       LivroStatus = "DOADO"
	LivroPerdido     LivroStatus = "PERDIDO"
)

// Label returns the Portuguese display name of s.
func (s LivroStatus) Label() string {
	switch s {
	case LivroDisponivel:
		return "Disponível"
	case LivroEmprestado:
		return "Emprestado"
	case LivroParaGuardar:
		return "Para guardar"
	case LivroDoado:
		return "Doado"
	case LivroPerdido:
		return "Perdido"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the statuses known to the backend.
func (s LivroStatus) Valid() bool {
	switch s {
	case LivroDisponivel, LivroEmprestado, LivroParaGuardar, LivroDoado, LivroPerdido:
		return true
	}
	return false
}

// Livro is a book of the collection. IDs are short alphanumeric codes
// assigned by the librarians.
type Livro struct {
	ID                string      `json:"id"`
	Titulo            string      `json:"titulo"`
	Autor             string      `json:"autor"`
	Ano               int         `json:"ano"`
	Status            LivroStatus `json:"status"`
	PodeSerEmprestado bool        `json:"pode_ser_emprestado,omitempty"`
}

// LivroInput is the writable subset of Livro.
type LivroInput struct {
	ID     string      `json:"id,omitempty"`
	Titulo string      `json:"titulo"`
	Autor  string      `json:"autor"`
	Ano    int         `json:"ano"`
	Status LivroStatus `json:"status,omitempty"`
}

// VerificacaoLivro is the availability report of one book. Consistencia is
// kept opaque; the backend sends null while the check is disabled.
type VerificacaoLivro struct {
	PodeSerEmprestado bool            `json:"pode_ser_emprestado"`
	Status            LivroStatus     `json:"status"`
	StatusDisplay     string          `json:"status_display"`
	EmprestimoAtivo   *Emprestimo     `json:"emprestimo_ativo"`
	Consistencia      json.RawMessage `json:"consistencia"`
}

// Associado is a member of the reading room. A member may be linked to a
// login user.
type Associado struct {
	ID          int64  `json:"id"`
	Nome        string `json:"nome"`
	Aniversario string `json:"aniversario"`
	EstaAtivo   bool   `json:"esta_ativo"`
	Gerente     bool   `json:"gerente"`
	UserID      *int64 `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
}

// AssociadoInput creates a member. Username and Password together also
// create the linked login user.
type AssociadoInput struct {
	Nome        string `json:"nome"`
	Aniversario string `json:"aniversario"`
	EstaAtivo   bool   `json:"esta_ativo"`
	Gerente     bool   `json:"gerente"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	Email       string `json:"email,omitempty"`
}

// AssociadoPatch holds the fields of a partial update. Nil fields are left
// untouched.
type AssociadoPatch struct {
	Nome        *string `json:"nome,omitempty"`
	Aniversario *string `json:"aniversario,omitempty"`
	EstaAtivo   *bool   `json:"esta_ativo,omitempty"`
	Gerente     *bool   `json:"gerente,omitempty"`
}

// Emprestimo is a loan of one book to one member.
type Emprestimo struct {
	ID                int64   `json:"id"`
	Livro             string  `json:"livro"`
	LivroTitulo       string  `json:"livro_titulo,omitempty"`
	Associado         int64   `json:"associado"`
	AssociadoNome     string  `json:"associado_nome,omitempty"`
	DataEmprestimo    string  `json:"data_emprestimo"`
	DataPrevista      string  `json:"data_prevista"`
	DataDevolucao     *string `json:"data_devolucao"`
	QuemEmprestou     *int64  `json:"quem_emprestou"`
	QuemEmprestouNome string  `json:"quem_emprestou_nome,omitempty"`
	QuemDevolveu      *int64  `json:"quem_devolveu"`
	QuemDevolveuNome  string  `json:"quem_devolveu_nome,omitempty"`
}

// Ativo reports whether the book was not returned yet.
func (e Emprestimo) Ativo() bool {
	return e.DataDevolucao == nil || *e.DataDevolucao == ""
}

// Atrasado reports whether an active loan is past its due date on now's
// calendar day. A due date that cannot be parsed is never late.
func (e Emprestimo) Atrasado(now time.Time) bool {
	if !e.Ativo() {
		return false
	}
	due, err := time.ParseInLocation(DateLayout, e.DataPrevista, now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.After(due)
}

// EmprestimoInput opens a loan. An empty DataPrevista lets the backend
// apply its default of seven days.
type EmprestimoInput struct {
	Livro        string `json:"livro"`
	Associado    int64  `json:"associado"`
	DataPrevista string `json:"data_prevista,omitempty"`
}

// Dashboard is the summary shown on the staff home page.
type Dashboard struct {
	Livros struct {
		Total       int `json:"total"`
		Disponiveis int `json:"disponiveis"`
		Emprestados int `json:"emprestados"`
	} `json:"livros"`
	Emprestimos struct {
		Ativos    int `json:"ativos"`
		Atrasados int `json:"atrasados"`
	} `json:"emprestimos"`
	Associados struct {
		Total  int `json:"total"`
		Ativos int `json:"ativos"`
	} `json:"associados"`
}
