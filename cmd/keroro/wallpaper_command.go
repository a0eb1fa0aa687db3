package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keroro/internal/config"
	"keroro/internal/session"
)

func newWallpaperCommand(ctx *commandContext) *cobra.Command {
	wallpaperCmd := &cobra.Command{
		Use:   "wallpaper",
		Short: "Manage the editor background image",
	}
	wallpaperCmd.AddCommand(newWallpaperUploadCommand(ctx))
	return wallpaperCmd
}

func newWallpaperUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image>",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer file.Close()
			return ctx.withSession(func(s *session.Session) error {
				url, err := s.Registry.UploadWallpaper(cmd.Context(), path, file)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"url": url})
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			})
		},
	}
}
