package common

import (
	"context"
	"io"

	"resumesense/internal/errors"
	"resumesense/internal/view"
)

// LoadInputFunc reads and validates the command's input.
type LoadInputFunc[Input any] func() (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// PageOperationFunc turns an input into a page. It may return a page along
// with an error, in which case the page describes the failure.
type PageOperationFunc[Input any] func(context.Context, Input) (*view.Page, error)

// RunPageCommand loads input, runs the operation and writes the resulting
// page. A page returned alongside an error is still written before the
// error is returned.
func RunPageCommand[Input any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	out io.Writer,
	loadInput LoadInputFunc[Input],
	operation PageOperationFunc[Input],
	logDetails LogDetailsFunc[Input],
) error {
	outputHandler := NewOutputHandlerTo(out, logger)

	input, err := loadInput()
	if err != nil {
		return err
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	page, opErr := operation(ctx, input)
	if page != nil {
		if err := outputHandler.HandleOutput(page, cmdConfig); err != nil {
			return err
		}
	}
	return opErr
}
