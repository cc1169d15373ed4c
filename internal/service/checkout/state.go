// Package checkout drives the cart drawer: choosing the items of one chain,
// approving their currencies and buying them in a single transaction.
package checkout

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"

	"nft-storefront/internal/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid drawer transition")
	ErrEmptySelection    = errors.New("no items selected")
)

type Step int

const (
	StepSelection Step = iota
	StepTransaction
	StepSuccess
	StepError
)

func (s Step) String() string {
	switch s {
	case StepSelection:
		return "selection"
	case StepTransaction:
		return "transaction"
	case StepSuccess:
		return "success"
	case StepError:
		return "error"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// State is what the drawer shows. ChainID and Items are set from the
// Transaction step on; Receipt only in Success; Err only in Error.
type State struct {
	Step    Step
	ChainID int64
	Items   []domain.CartItem
	Receipt *types.Receipt
	Err     error
}

// Event is anything that moves the drawer between steps.
type Event interface {
	event()
}

type (
	Opened       struct{}
	Closed       struct{}
	RouteChanged struct{}
	Back         struct{}
	Selected     struct {
		ChainID int64
		Items   []domain.CartItem
	}
	Succeeded struct {
		Receipt *types.Receipt
	}
	Failed struct {
		Err error
	}
)

func (Opened) event()       {}
func (Closed) event()       {}
func (RouteChanged) event() {}
func (Back) event()         {}
func (Selected) event()     {}
func (Succeeded) event()    {}
func (Failed) event()       {}

// Next returns the state that follows s on e. Opening, closing and
// navigating away always reset to the selection step. A failure shows the
// error view from any step, including after a success.
func Next(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case Opened, Closed, RouteChanged:
		return State{Step: StepSelection}, nil
	case Selected:
		if s.Step != StepSelection {
			return s, fmt.Errorf("%w: select from %s", ErrInvalidTransition, s.Step)
		}
		if ev.ChainID <= 0 {
			return s, fmt.Errorf("%w: chain id %d", ErrInvalidTransition, ev.ChainID)
		}
		if len(ev.Items) == 0 {
			return s, ErrEmptySelection
		}
		items := make([]domain.CartItem, len(ev.Items))
		copy(items, ev.Items)
		return State{Step: StepTransaction, ChainID: ev.ChainID, Items: items}, nil
	case Back:
		if s.Step != StepTransaction && s.Step != StepError {
			return s, fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.Step)
		}
		return State{Step: StepSelection}, nil
	case Succeeded:
		if s.Step != StepTransaction {
			return s, fmt.Errorf("%w: success from %s", ErrInvalidTransition, s.Step)
		}
		return State{Step: StepSuccess, ChainID: s.ChainID, Items: s.Items, Receipt: ev.Receipt}, nil
	case Failed:
		err := ev.Err
		if err == nil {
			err = errors.New("checkout failed")
		}
		return State{Step: StepError, ChainID: s.ChainID, Items: s.Items, Err: err}, nil
	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
	}
}
