package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"resumematch/internal/common"
	"resumematch/internal/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract [resume-file]",
	Short: "Print the text extracted from a PDF or DOCX resume",
	Long: `Extract the plain text of a resume exactly as it would be sent for
analysis. Useful for checking that a PDF or DOCX file is readable before
running a check. No API key is needed.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: preRunFormat(&extractConfig, "Document"),
	RunE:    runExtract,
}

var extractConfig common.CommandConfig

func init() {
	extractCmd.Flags().StringVarP(&extractConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().StringVar(&extractConfig.OutputFormat, "format", "", "Output format: json, text or markdown")

	_ = extractCmd.RegisterFlagCompletionFunc("format", completeFormats)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	fp := common.NewFileProcessor(logger)
	loader := newLoader(cfg)

	err = common.RunCommand(cmd.Context(), logger, extractConfig,
		func(ctx context.Context) (*types.Document, error) {
			file, err := fp.ReadDocument(args[0])
			if err != nil {
				return nil, err
			}
			return loader.Load(ctx, file.Name, file.MIMEType, file.Data)
		})
	if err != nil {
		return fmt.Errorf("failed to extract resume: %w", err)
	}
	return nil
}
