package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avamapper/internal/config"
)

func newTransformCmd(c *cli) *cobra.Command {
	var (
		sourcePath string
		configPath string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Transform a document with a mapping configuration",
		Example: `  avamapctl transform --source order.json --config mapping.yaml
  cat order.xml | avamapctl transform --source - --config mapping.json --pretty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sourcePath == "-" && configPath == "-" {
				return errors.New("--source and --config cannot both read stdin")
			}
			source, err := c.readInput(sourcePath)
			if err != nil {
				return err
			}
			rawConfig, err := c.readInput(configPath)
			if err != nil {
				return err
			}
			cfg, err := config.ParseMappingConfig(rawConfig)
			if err != nil {
				return err
			}
			if pretty {
				cfg.PrettyPrint = true
			}

			r, err := c.runner()
			if err != nil {
				return err
			}
			res, err := r.Transform(cmd.Context(), source, cfg)
			if err != nil {
				return err
			}

			c.printer().warnings(res.Warnings)
			if !res.Success {
				return fmt.Errorf("transformation failed: %s", res.ErrorMessage)
			}
			fmt.Fprintln(c.stdout, res.TransformedData)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source document file, or - for stdin")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Mapping configuration file (JSON or YAML)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print the output")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
