package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
	"github.com/vyrodovalexey/avamapper/internal/path"
)

func newParseCmd(c *cli) *cobra.Command {
	var (
		sourcePath string
		sourceType string
		selectPath string
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Show the document tree a source decodes to, as JSON",
		Long: `Show the document tree a source decodes to, as JSON.

With --path only the value the path expression resolves to is printed.
Wildcards and recursive descent print an array of every match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := c.readInput(sourcePath)
			if err != nil {
				return err
			}
			r, err := c.runner()
			if err != nil {
				return err
			}
			out, err := r.Parse(cmd.Context(), source, sourceType)
			if err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}
			if selectPath != "" {
				if out, err = selectValue(out, selectPath); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.stdout, string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "Source document file, or - for stdin")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source protocol, JSON or XML")
	cmd.Flags().StringVarP(&selectPath, "path", "p", "", "Print only the value at this path expression")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// selectValue resolves expr against the parsed tree and renders the match.
func selectValue(parsed []byte, expr string) ([]byte, error) {
	codec := encoding.NewJSONCodec()
	doc, err := codec.Decode(parsed, encoding.DecodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read parsed tree: %w", err)
	}

	n, found, err := path.Lookup(doc.Root, expr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no value at %s", expr)
	}
	return codec.Encode(&document.Document{Root: n}, encoding.Options{Pretty: true})
}
