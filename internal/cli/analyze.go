package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"resumesense/internal/analysis"
	"resumesense/internal/common"
	"resumesense/internal/errors"
	"resumesense/internal/render"
	"resumesense/internal/view"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume-file>",
	Short: "Analyze a resume with the analysis service",
	Long: `Send a resume to the analysis service and render the result.

The output includes:
- Overall quality score
- ATS compatibility checks (when the service reports them)
- Job match score and keywords (with --job-description-file)
- Power verb suggestions
- Project and achievement insights

On failure the error page is still written and the command exits non-zero.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveFormat(cmd, &analyzeOptions.CommandConfig)
	},
	RunE: runAnalyze,
}

var analyzeOptions struct {
	common.CommandConfig
	jobDescriptionFile string
	tab                string
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOptions.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	analyzeCmd.Flags().StringVar(&analyzeOptions.OutputFormat, "format", "", "Output format: html, json, text, or markdown")
	analyzeCmd.Flags().StringVarP(&analyzeOptions.jobDescriptionFile, "job-description-file", "j", "", "Job description to match the resume against")
	analyzeCmd.Flags().StringVar(&analyzeOptions.tab, "tab", "", "Active insights tab: projects or achievements")

	registerFormatCompletion(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	client := analysis.NewClient(cfg.Upstream, nil, logger)
	fileProcessor := common.NewFileProcessor(logger)
	resumeFile := args[0]

	loadInput := func() (analysis.Submission, error) {
		content, err := fileProcessor.ReadResume(resumeFile, cfg.App.MaxFileSize)
		if err != nil {
			return analysis.Submission{}, err
		}

		sub := analysis.Submission{
			Filename: filepath.Base(resumeFile),
			Content:  content,
		}
		if analyzeOptions.jobDescriptionFile != "" {
			jd, err := fileProcessor.ReadText(analyzeOptions.jobDescriptionFile)
			if err != nil {
				return analysis.Submission{}, err
			}
			sub.JobDescription = strings.TrimSpace(jd)
		}
		return sub, sub.Validate()
	}

	logDetails := func(sub analysis.Submission, cfg common.CommandConfig) {
		logger.Info("Starting resume analysis",
			"filename", sub.Filename,
			"resume_bytes", len(sub.Content),
			"job_chars", len(sub.JobDescription),
			"output_format", cfg.OutputFormat)
	}

	operation := func(ctx context.Context, sub analysis.Submission) (*view.Page, error) {
		result, err := client.Analyze(ctx, sub)
		if err != nil {
			return render.RenderError(errors.UserMessage(err)), err
		}
		page := render.Results(result)
		activateTab(page, analyzeOptions.tab, logger)
		return page, nil
	}

	err = common.RunPageCommand(
		cmd.Context(),
		logger,
		analyzeOptions.CommandConfig,
		cmd.OutOrStdout(),
		loadInput,
		operation,
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to analyze resume: %w", err)
	}
	logger.Info("Resume analysis completed successfully")
	return nil
}

// resolveFormat applies the configured default format and validates it
func resolveFormat(cmd *cobra.Command, cmdConfig *common.CommandConfig) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	format, err := common.ResolveOutputFormat(cmdConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
	if err != nil {
		return err
	}
	cmdConfig.OutputFormat = format
	return nil
}

func registerFormatCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}
