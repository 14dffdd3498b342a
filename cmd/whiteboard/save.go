package main

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sharetube/whiteboard/internal/session"
)

func saveCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "save <image>",
		Short: "Save an image file as a snapshot of a room",
		Long: `Save reads a PNG, JPEG, GIF, BMP or WebP file and stores it as a named
snapshot of --room. The room's live surfaces are not changed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomKey := viper.GetString(keyRoom)
			if roomKey == "" {
				return errors.New("--room is required")
			}
			if name == "" {
				return errors.New("--snapshot-name is required")
			}

			img, err := readImage(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			b := img.Bounds()
			s, err := joinSession(ctx, newLogger(), roomKey, b.Dx(), b.Dy())
			if err != nil {
				return err
			}
			defer s.Close()

			results := make(chan session.SaveResult, 1)
			s.OnSaveResult(func(r session.SaveResult) {
				select {
				case results <- r:
				default:
				}
			})

			if err := s.Import(img); err != nil {
				return err
			}
			if err := s.Save(name); err != nil {
				return err
			}

			select {
			case r := <-results:
				if r.Err != nil {
					return r.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %q as %s\n", r.Name, r.SnapshotID)
				return nil
			case <-ctx.Done():
				return fmt.Errorf("no save acknowledgement: %w", ctx.Err())
			}
		},
	}

	cmd.Flags().StringVar(&name, "snapshot-name", "", "Name to save the snapshot under")

	return cmd
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return img, nil
}
