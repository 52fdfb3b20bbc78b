package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var errEmptyInput = errors.New("no text given")

// readText returns the content of args[0], stdin for "-", or text typed at
// the prompt when args is empty.
func (a *App) readText(args []string, prompt string) (string, error) {
	var text string
	switch {
	case len(args) == 0:
		t, err := GetMultiline(a.reader, prompt, a.out)
		if err != nil {
			return "", err
		}
		text = t
	case args[0] == "-":
		b, err := io.ReadAll(a.reader)
		if err != nil {
			return "", err
		}
		text = string(b)
	default:
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		text = string(b)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyInput
	}
	return text, nil
}

func analyzeCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Have the AI explain a lab report without storing it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			text, err := a.readText(args, "Paste the report text")
			if err != nil {
				return err
			}
			out, err := a.api.Analyze(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, out)
			return nil
		},
	}
}

func askCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a general health question",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				var err error
				if q, err = getSimpleText(a.reader, "Your question", a.out); err != nil {
					return err
				}
			}
			if q == "" {
				return errEmptyInput
			}
			answer, err := a.api.Ask(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, answer)
			return nil
		},
	}
}

// ocrCmd uploads a scan. With --save the extracted text is analyzed and
// stored as a report linked to the archived upload.
func ocrCmd(app func() *App) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "ocr <file>",
		Short: "Extract text from a scanned report (image or PDF up to 5 pages)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			res, err := a.api.OCR(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			if !save {
				fmt.Fprintln(a.out, res.Text)
				return nil
			}

			r, err := a.api.AnalyzeReport(cmd.Context(), res.Text, res.DocumentKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Report %s saved\n\n", r.ID)
			printReport(a.out, r)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&save, "save", "s", false, "analyze the text and store it as a report")
	return cmd
}
