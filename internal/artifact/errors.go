package artifact

import "errors"

var (
	// ErrValidation é retornado quando o nome do arquivo está ausente ou a extensão não é aceita.
	ErrValidation = errors.New("arquivo inválido")
	// ErrStoreWrite indica que o armazenamento recusou a gravação.
	ErrStoreWrite = errors.New("falha ao gravar artefato")
	// ErrNotFound é retornado quando o artefato não existe no armazenamento.
	ErrNotFound = errors.New("artefato não encontrado")
	// ErrUnsupportedContent indica que o motor não conseguiu interpretar o conteúdo.
	ErrUnsupportedContent = errors.New("conteúdo não suportado")
	// ErrEngineInit indica motor de conversão indisponível.
	ErrEngineInit = errors.New("motor de conversão indisponível")
	// ErrEngineInternal cobre qualquer outra falha do motor.
	ErrEngineInternal = errors.New("falha interna na conversão")
)

// Kind classifica erros do pipeline em códigos estáveis.
type Kind string

const (
	KindNone               Kind = ""
	KindValidation         Kind = "VALIDATION"
	KindStoreWrite         Kind = "STORE_WRITE"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnsupportedContent Kind = "UNSUPPORTED_CONTENT"
	KindEngineInit         Kind = "ENGINE_INIT"
	KindEngineInternal     Kind = "ENGINE_INTERNAL"
)

// KindOf devolve a classificação do erro. As classes do motor prevalecem sobre erros
// de armazenamento encadeados; erros desconhecidos contam como falha interna do motor.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnsupportedContent):
		return KindUnsupportedContent
	case errors.Is(err, ErrEngineInit):
		return KindEngineInit
	case errors.Is(err, ErrEngineInternal):
		return KindEngineInternal
	case errors.Is(err, ErrStoreWrite):
		return KindStoreWrite
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindEngineInternal
	}
}
