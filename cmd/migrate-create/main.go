package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var dir string

	cmd := &cobra.Command{
		Use:           "migrate-create <name>",
		Short:         "Creates an empty up/down migration pair.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if strings.ContainsAny(name, " /") {
				return errors.New("migration name must not contain spaces or slashes")
			}

			version := time.Now().UTC().Format("20060102150405")
			base := fmt.Sprintf("%s_%s", version, name)
			upPath := filepath.Join(dir, base+".up.sql")
			downPath := filepath.Join(dir, base+".down.sql")

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create migrations dir: %w", err)
			}
			if err := writeFile(upPath, "-- up migration\n"); err != nil {
				return fmt.Errorf("create up migration: %w", err)
			}
			if err := writeFile(downPath, "-- down migration\n"); err != nil {
				return fmt.Errorf("create down migration: %w", err)
			}
			log.Infof("created %s and %s", upPath, downPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", filepath.Join("db", "migrations"), "migrations directory")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
