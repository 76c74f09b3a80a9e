package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"resumesense/internal/common"
	"resumesense/internal/errors"
	"resumesense/internal/render"
	"resumesense/internal/types"
	"resumesense/internal/view"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render <result.json>",
	Short: "Render a saved analysis result without calling the service",
	Long: `Render an analysis payload previously returned by the analysis service.
Use "-" to read the payload from standard input.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &renderOptions.CommandConfig)
	},
	RunE: runRender,
}

var renderOptions struct {
	common.CommandConfig
	tab string
}

func init() {
	renderCmd.Flags().StringVarP(&renderOptions.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	renderCmd.Flags().StringVar(&renderOptions.OutputFormat, "format", "", "Output format: html, json, text, or markdown")
	renderCmd.Flags().StringVar(&renderOptions.tab, "tab", "", "Active insights tab: projects or achievements")

	registerFormatCompletion(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	source := args[0]
	loadInput := func() (*types.AnalysisResult, error) {
		var raw []byte
		var err error
		if source == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read standard input", err)
			}
		} else {
			raw, err = common.NewFileProcessor(logger).ReadFile(source)
			if err != nil {
				return nil, err
			}
		}

		var result types.AnalysisResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidPayload,
				fmt.Sprintf("Invalid analysis payload in %s", source), err)
		}
		return &result, nil
	}

	logDetails := func(result *types.AnalysisResult, cfg common.CommandConfig) {
		logger.Info("Rendering saved analysis",
			"source", source,
			"has_ats", result.ATSScore != nil,
			"has_match", result.MatchScore != nil,
			"output_format", cfg.OutputFormat)
	}

	operation := func(_ context.Context, result *types.AnalysisResult) (*view.Page, error) {
		page := render.Results(result)
		activateTab(page, renderOptions.tab, logger)
		return page, nil
	}

	if err := common.RunPageCommand(
		cmd.Context(),
		logger,
		renderOptions.CommandConfig,
		cmd.OutOrStdout(),
		loadInput,
		operation,
		logDetails,
	); err != nil {
		return fmt.Errorf("failed to render analysis: %w", err)
	}
	return nil
}
