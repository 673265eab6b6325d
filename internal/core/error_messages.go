package core

// error_messages.go maps technical errors to messages shown on the site.
//
// # Registration Errors (REG001-REG099)
//
//	REG001 - Sold out             Patterns: "no_vacancies"
//	REG002 - Unknown course       Patterns: "course_not_found"
//	REG003 - Already registered   Patterns: "duplicate_registration"
//	REG004 - Backend unavailable  Patterns: "backend not configured"
//	REG005 - Unknown registration Patterns: "registration not found"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Nothing to export    Patterns: "nothing to export"
//	EXP002 - Incomplete data      Patterns: "incomplete registration data"
//	EXP003 - Invalid phones       carried by the error itself (see Messager)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large      Patterns: "file too large"
//	FILE004 - No file             Patterns: "no file provided"
//	FILE010 - Empty or headerless Patterns: "arquivo vazio ou sem cabeçalho"
//	FILE011 - Missing columns     Patterns: "formato inválido"
//	FILE012 - Not a spreadsheet   Patterns: "erro ao ler o arquivo"
//	FILE013 - Read failure        Patterns: "erro na leitura do arquivo"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid form         carried by the error itself (see Messager)
//	VAL002 - Invalid id           Patterns: "invalid registration id"
//	VAL003 - Malformed request    Patterns: "malformed request body"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key         Patterns: "duplicate key"
//	DB004 - Connection refused    Patterns: "connection refused"
//	DB005 - Connection reset      Patterns: "connection reset"
//	DB006 - Timeout               Patterns: "timeout"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy          Patterns: "too many concurrent"
//	UPL004 - Request cancelled    Patterns: "context canceled"
//	UPL005 - Request timeout      Patterns: "context deadline exceeded"
//
// # Rate Limiting
//
//	RATE001 - Too many requests   Patterns: "rate limit"
//
// ERR000 is the fallback; the technical error is in the logs.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is what the site shows for an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Reference for support
}

// Messager is implemented by errors that build their own user message,
// typically because it depends on data carried by the error.
type Messager interface {
	UserMessage() UserMessage
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Registration
	{
		pattern: "no_vacancies",
		msg: UserMessage{
			Message: "Este curso está com vagas esgotadas.",
			Action:  "Escolha outro curso disponível.",
			Code:    "REG001",
		},
	},
	{
		pattern: "course_not_found",
		msg: UserMessage{
			Message: "Curso não encontrado.",
			Action:  "Atualize a página e selecione o curso novamente.",
			Code:    "REG002",
		},
	},
	{
		pattern: "duplicate_registration",
		msg: UserMessage{
			Message: "Você já está inscrita neste curso.",
			Action:  "Verifique seu e-mail de confirmação.",
			Code:    "REG003",
		},
	},
	{
		pattern: "backend not configured",
		msg: UserMessage{
			Message: "As inscrições estão indisponíveis no momento.",
			Action:  "Tente novamente mais tarde.",
			Code:    "REG004",
		},
	},
	{
		pattern: "registration not found",
		msg: UserMessage{
			Message: "Inscrição não encontrada.",
			Action:  "Atualize a lista de inscrições.",
			Code:    "REG005",
		},
	},

	// Exports
	{
		pattern: "nothing to export",
		msg: UserMessage{
			Message: "Não há inscrições para exportar.",
			Code:    "EXP001",
		},
	},
	{
		pattern: "incomplete registration data",
		msg: UserMessage{
			Message: "Existem inscrições com dados obrigatórios vazios.",
			Action:  "Revise as inscrições antes de exportar.",
			Code:    "EXP002",
		},
	},

	// Uploaded files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "O arquivo excede o tamanho máximo permitido.",
			Action:  "Divida a planilha em arquivos menores.",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "Nenhum arquivo foi enviado.",
			Action:  "Selecione uma planilha .xlsx, .xls ou .csv.",
			Code:    "FILE004",
		},
	},
	{
		pattern: "arquivo vazio ou sem cabeçalho",
		msg: UserMessage{
			Message: "Arquivo vazio ou sem cabeçalho.",
			Action:  "A primeira linha deve conter os títulos das colunas.",
			Code:    "FILE010",
		},
	},
	{
		pattern: "formato inválido",
		msg: UserMessage{
			Message: `Formato inválido. O arquivo deve conter colunas "name" e "phone".`,
			Action:  "Use também nome, telefone ou celular como títulos.",
			Code:    "FILE011",
		},
	},
	{
		pattern: "erro ao ler o arquivo",
		msg: UserMessage{
			Message: "Erro ao ler o arquivo. Verifique se é um Excel válido.",
			Code:    "FILE012",
		},
	},
	{
		pattern: "erro na leitura do arquivo",
		msg: UserMessage{
			Message: "Erro na leitura do arquivo.",
			Action:  "Tente enviar o arquivo novamente.",
			Code:    "FILE013",
		},
	},

	// Request validation
	{
		pattern: "invalid registration id",
		msg: UserMessage{
			Message: "Identificador de inscrição inválido.",
			Code:    "VAL002",
		},
	},
	{
		pattern: "malformed request body",
		msg: UserMessage{
			Message: "Não foi possível ler os dados enviados.",
			Action:  "Atualize a página e tente novamente.",
			Code:    "VAL003",
		},
	},

	// Processing slots
	{
		pattern: "too many concurrent",
		msg: UserMessage{
			Message: "O sistema está processando outros arquivos.",
			Action:  "Aguarde alguns instantes e tente novamente.",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "A requisição foi cancelada.",
			Action:  "Tente novamente.",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "A requisição demorou demais.",
			Action:  "Tente novamente com um arquivo menor.",
			Code:    "UPL005",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "Registro duplicado.",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Não foi possível conectar ao banco de dados.",
			Action:  "Tente novamente em alguns instantes.",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "A conexão com o banco de dados foi interrompida.",
			Action:  "Tente novamente.",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "A operação excedeu o tempo limite.",
			Action:  "Tente novamente mais tarde.",
			Code:    "DB006",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Muitas requisições.",
			Action:  "Aguarde um momento antes de tentar novamente.",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "Ocorreu um erro inesperado.",
	Action:  "Tente novamente ou entre em contato com a organização.",
	Code:    "ERR000",
}

// MapError converts a technical error to the message shown to users.
// Errors implementing Messager anywhere in their chain win over the
// pattern table; unmatched errors map to ERR000.
//
//	msg := MapError(fmt.Errorf("register: %w", backend.ErrNoVacancies))
//	// msg.Code == "REG001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	var m Messager
	if errors.As(err, &m) {
		return m.UserMessage()
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Código: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	if msg.Action == "" {
		return fmt.Sprintf("%s (Código: %s)", msg.Message, msg.Code)
	}
	return fmt.Sprintf("%s (Código: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with the message
// shown to users.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and wraps it. It returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
