package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"resumematch/internal/ai"
	"resumematch/internal/common"
	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/extractor"
	"resumematch/internal/matcher"
	"resumematch/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check [resume-file]",
	Short: "Score a resume against a job description",
	Long: `Extract the text of a PDF or DOCX resume and ask Gemini how well it
matches a job description. The job description is read from --job, from
--job-text, or from standard input when neither is given.

The result contains a score from 0 to 100, the matched and missing
keywords, and suggestions for improving the resume.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: preRunFormat(&checkConfig, "AnalysisResult"),
	RunE:    runCheck,
}

var (
	checkConfig  common.CommandConfig
	checkJobFile string
	checkJobText string
)

func init() {
	checkCmd.Flags().StringVarP(&checkConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	checkCmd.Flags().StringVar(&checkConfig.OutputFormat, "format", "", "Output format: json, text, markdown or html")
	checkCmd.Flags().StringVarP(&checkJobFile, "job", "j", "", "File containing the job description")
	checkCmd.Flags().StringVar(&checkJobText, "job-text", "", "Job description text")
	checkCmd.MarkFlagsMutuallyExclusive("job", "job-text")

	_ = checkCmd.RegisterFlagCompletionFunc("format", completeFormats)
}

// preRunFormat fills in the default output format and validates it for
// values of dataType.
func preRunFormat(cmdConfig *common.CommandConfig, dataType string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if cmdConfig.OutputFormat == "" {
			cmdConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if err := common.ValidateOutputFormat(cmdConfig.OutputFormat, cfg.App.SupportedFormats); err != nil {
			return err
		}
		return common.ValidateFormatFor(cmdConfig.OutputFormat, dataType)
	}
}

func completeFormats(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return []string{}, cobra.ShellCompDirectiveError
	}
	return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	fp := common.NewFileProcessor(logger)
	jobDescription, err := readJobDescription(fp, cmd.InOrStdin())
	if err != nil {
		return err
	}

	service, err := ai.NewService(cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.LogError(err, "Failed to close AI service")
		}
	}()

	m := matcher.New(newLoader(cfg), service, logger)

	logger.Info("Starting resume check",
		"resume_file", args[0],
		"job_chars", len(jobDescription),
		"output_format", checkConfig.OutputFormat)

	err = common.RunCommand(cmd.Context(), logger, checkConfig,
		func(ctx context.Context) (types.AnalysisResult, error) {
			session := &types.Session{}
			if err := loadResumeFile(ctx, m, fp, session, args[0]); err != nil {
				return types.AnalysisResult{}, err
			}
			return m.Check(ctx, session, jobDescription)
		})
	if err != nil {
		return fmt.Errorf("failed to check resume: %w", err)
	}

	logger.Info("Resume check completed successfully")
	return nil
}

// readJobDescription reads the job description from the flags or stdin.
func readJobDescription(fp *common.FileProcessor, stdin io.Reader) (string, error) {
	switch {
	case checkJobText != "":
		return checkJobText, nil
	case checkJobFile != "":
		return fp.ReadFile(checkJobFile)
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read job description from standard input", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingInput, errors.MsgMissingInput, nil)
	}
	return string(data), nil
}

func loadResumeFile(ctx context.Context, m *matcher.Matcher, fp *common.FileProcessor, session *types.Session, path string) error {
	file, err := fp.ReadDocument(path)
	if err != nil {
		return err
	}
	_, err = m.LoadResume(ctx, session, file.Name, file.MIMEType, file.Data)
	return err
}

func newLoader(cfg *config.Config) *extractor.Loader {
	return extractor.NewLoader(extractor.WithMaxFileSize(cfg.App.MaxFileSize))
}
