package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chr1sbest/payment-api/internal/config"
	"github.com/chr1sbest/payment-api/internal/openapi"
	"github.com/chr1sbest/payment-api/internal/parser"
	"github.com/chr1sbest/payment-api/internal/server"
)

func docsCmd(configPath *string) *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Write the API description the service publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			doc, _, err := server.Describe(cfg)
			if err != nil {
				return err
			}
			data, err := openapi.Encode(doc, format)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", openapi.FormatYAML, "Output format: yaml or json")

	cmd.AddCommand(verifyCmd(configPath))
	return cmd
}

func verifyCmd(configPath *string) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a published description against the service's declared access policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in == "" {
				return errors.New("--in is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			_, reg, err := server.Describe(cfg)
			if err != nil {
				return err
			}
			published, err := parser.ParseConfig(in)
			if err != nil {
				return fmt.Errorf("parse description: %w", err)
			}

			drift := parser.Verify(published, reg.Config())
			if len(drift) > 0 {
				return fmt.Errorf("description %s disagrees with the service:\n  %s", in, strings.Join(drift, "\n  "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s matches %d declared endpoints\n", in, len(reg.Endpoints()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "Path to OpenAPI YAML or JSON file")
	return cmd
}
