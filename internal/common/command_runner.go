package common

import (
	"context"

	"resumematch/internal/errors"
)

// OperationFunc produces the value a command prints.
type OperationFunc[Output any] func(context.Context) (Output, error)

// RunCommand runs operation and writes its formatted result. The output
// target is validated first so a bad -o path fails before any AI call.
func RunCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	operation OperationFunc[Output],
) error {
	outputHandler := NewOutputHandler(logger)

	if err := outputHandler.fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	result, err := operation(ctx)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
