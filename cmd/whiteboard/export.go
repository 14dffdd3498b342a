package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"

	"github.com/sharetube/whiteboard/internal/session"
)

const (
	formatPNG = "png"
	formatPDF = "pdf"
)

var errUnknownFormat = errors.New("unknown export format")

func exportCmd() *cobra.Command {
	var (
		output string
		format string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "export <snapshot-id>",
		Short: "Export a saved snapshot to PNG or PDF",
		Long: `Export loads a snapshot through a private room, so no one else's
surface is replaced, and writes it to --output. The format comes from
--format or else from the output extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}
			f, err := exportFormat(format, output)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := joinSession(ctx, newLogger(), "export-"+uuid.NewString(), width, height)
			if err != nil {
				return err
			}
			defer s.Close()

			results := make(chan session.LoadResult, 1)
			s.OnLoad(func(r session.LoadResult) {
				select {
				case results <- r:
				default:
				}
			})

			if err := s.Load(args[0]); err != nil {
				return err
			}

			select {
			case r := <-results:
				if r.Err != nil {
					return r.Err
				}
			case <-ctx.Done():
				return fmt.Errorf("snapshot was not delivered: %w", ctx.Err())
			}

			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := writeImage(file, f, s.Image()); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	cmd.Flags().StringVar(&format, "format", "", "png or pdf")
	cmd.Flags().IntVar(&width, "width", session.DefaultWidth, "Export width in pixels")
	cmd.Flags().IntVar(&height, "height", session.DefaultHeight, "Export height in pixels")

	return cmd
}

func exportFormat(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(output), ".")
	}

	switch f := strings.ToLower(format); f {
	case formatPNG, formatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q", errUnknownFormat, format)
	}
}

func writeImage(w io.Writer, format string, img image.Image) error {
	switch format {
	case formatPNG:
		return png.Encode(w, img)
	case formatPDF:
		return writePDF(w, img)
	default:
		return fmt.Errorf("%w %q", errUnknownFormat, format)
	}
}

// writePDF writes a single page sized to the image, one point per pixel.
func writePDF(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	b := img.Bounds()
	pageW, pageH := float64(b.Dx()), float64(b.Dy())

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("whiteboard", opt, &buf)
	pdf.ImageOptions("whiteboard", 0, 0, pageW, pageH, false, opt, 0, "")

	return pdf.Output(w)
}
