package disparo

// Error is a whole-file failure. Message is shown to the operator as is.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Whole-file failures.
var (
	ErrEmptyOrHeaderless      = &Error{Code: "FILE010", Message: "Arquivo vazio ou sem cabeçalho."}
	ErrMissingRequiredColumns = &Error{Code: "FILE011", Message: `Formato inválido. O arquivo deve conter colunas "name" e "phone".`}
	ErrUnreadableFile         = &Error{Code: "FILE012", Message: "Erro ao ler o arquivo. Verifique se é um Excel válido."}
	ErrReadError              = &Error{Code: "FILE013", Message: "Erro na leitura do arquivo."}
)

// Row-level reasons recorded on invalid rows.
const (
	ReasonMissingName  = "Nome ausente"
	ReasonMissingPhone = "Telefone ausente"
	ReasonBadPhone     = "Formato de telefone inválido após processamento"

	// UnknownName replaces an empty name on invalid rows.
	UnknownName = "Desconhecido"
)
