package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-buildbuddy/internal/config"
	"go-buildbuddy/internal/container"
	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/internal/prompts"
	"go-buildbuddy/internal/service"
	"go-buildbuddy/pkg/models"
	"go-buildbuddy/pkg/validation"
)

// AnalyzeOptions holds the flags of the analyze command
type AnalyzeOptions struct {
	ImagePath    string
	Description  string
	AnalysisType string
	OutputPath   string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one hardware problem from the command line",
	Long: `Send a photo and/or a description of a hardware problem to Claude and
print the markdown analysis. With --output the analysis is also saved to a
text file; pass a directory to use the default export file name.`,
	Example: `  buildbuddy analyze --image board.jpg --type "Design Review"
  buildbuddy analyze --description "laptop will not charge" --type troubleshooting --output .`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := getAnalyzeOptionsFromFlags(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		c, err := container.NewContainer(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to initialize container")
		}
		if cfgErr := c.ConfigError(); cfgErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), config.SetupInstructions)
			return cfgErr
		}

		return runAnalyze(cmd.Context(), c.Service(), opts, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().String("image", "", "Path to a jpg, jpeg, png or webp photo")
	analyzeCmd.Flags().String("description", "", "Description of the problem")
	analyzeCmd.Flags().String("type", string(prompts.GeneralRepair), "Analysis type: General Repair, Design Review, Troubleshooting or Component Analysis")
	analyzeCmd.Flags().String("output", "", "Save the analysis to this file or directory")
}

func getAnalyzeOptionsFromFlags(cmd *cobra.Command) AnalyzeOptions {
	var opts AnalyzeOptions
	opts.ImagePath, _ = cmd.Flags().GetString("image")
	opts.Description, _ = cmd.Flags().GetString("description")
	opts.AnalysisType, _ = cmd.Flags().GetString("type")
	opts.OutputPath, _ = cmd.Flags().GetString("output")
	return opts
}

func runAnalyze(ctx context.Context, svc service.AnalysisService, opts AnalyzeOptions, out io.Writer) error {
	analysisType, err := prompts.ParseAnalysisType(opts.AnalysisType)
	if err != nil {
		return err
	}

	sub := service.Submission{
		Description:  opts.Description,
		AnalysisType: analysisType,
	}
	if opts.ImagePath != "" {
		upload, err := readImageFile(opts.ImagePath)
		if err != nil {
			return userError(err)
		}
		sub.Image = upload
	}

	analysis, err := svc.Analyze(ctx, sub)
	if err != nil {
		return userError(err)
	}

	if analysis.Result.Notice != "" {
		fmt.Fprintf(out, "> %s\n\n", analysis.Result.Notice)
	}
	if analysis.Image != nil && analysis.Image.Quality != nil {
		for _, issue := range analysis.Image.Quality.Issues {
			fmt.Fprintf(out, "> Photo tip: %s\n", issue.Message)
		}
	}
	fmt.Fprintln(out, analysis.Result.Text)

	if opts.OutputPath == "" {
		return nil
	}

	path := exportPath(opts.OutputPath, analysis.ExportFilename)
	if err := os.WriteFile(path, []byte(analysis.Result.Text), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	fmt.Fprintf(out, "\nSaved analysis to %s\n", path)
	return nil
}

// readImageFile checks the size and extension from the file info before
// loading the file into memory
func readImageFile(path string) (*models.UploadedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}

	upload := &models.UploadedImage{
		Filename: filepath.Base(path),
		Size:     info.Size(),
	}
	if err := validation.NewUploadValidator().ValidateUpload(upload); err != nil {
		return nil, err
	}

	upload.Data, err = os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}
	return upload, nil
}

// userError strips the error type prefix from application errors
func userError(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return errors.New(appErr.Message)
	}
	return err
}

// exportPath places the default file name inside output when it is a directory
func exportPath(output, filename string) string {
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, filename)
	}
	return output
}
