package conversion

import (
	"fmt"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// State é a etapa do pipeline em que uma requisição se encontra.
type State string

const (
	StateReceived  State = "RECEIVED"
	StateValidated State = "VALIDATED"
	StateStaged    State = "STAGED"
	StateConverted State = "CONVERTED"
	StatePersisted State = "PERSISTED"
	StateCleanedUp State = "CLEANED_UP"
	StateFailed    State = "FAILED"
)

// IsTerminal informa se nenhuma transição parte do estado.
func IsTerminal(s State) bool {
	return s == StateCleanedUp || s == StateFailed
}

// CanTransition informa se a transição é permitida.
// Failed é alcançável de qualquer estado não terminal.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !IsTerminal(from)
	}
	switch from {
	case StateReceived:
		return to == StateValidated
	case StateValidated:
		return to == StateStaged
	case StateStaged:
		return to == StateConverted
	case StateConverted:
		return to == StatePersisted
	case StatePersisted:
		return to == StateCleanedUp
	default:
		return false
	}
}

// run acompanha o estado de uma única requisição.
type run struct {
	state State
	kind  artifact.Kind
}

func newRun() *run {
	return &run{state: StateReceived}
}

func (r *run) advance(to State) error {
	if !CanTransition(r.state, to) {
		return fmt.Errorf("%w: transição inválida %s -> %s", artifact.ErrEngineInternal, r.state, to)
	}
	r.state = to
	return nil
}

// fail leva a requisição ao estado terminal Failed registrando a classificação do erro.
// Devolve o próprio erro para uso direto em return.
func (r *run) fail(err error) error {
	if r.state != StateFailed && !IsTerminal(r.state) {
		r.state = StateFailed
		r.kind = artifact.KindOf(err)
	}
	return err
}
