package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avamapper/internal/config"
)

// scenario is a reference transformation with its expected output.
type scenario struct {
	id     string
	title  string
	source string
	config *config.MappingConfig
	want   string
}

func referenceScenarios() []scenario {
	return []scenario{
		{
			id:     "A",
			title:  "ONE_TO_ONE, JSON to JSON",
			source: `{"user":{"name":"张三","age":30}}`,
			config: &config.MappingConfig{
				Name: "scenario-a",
				Rules: []config.Rule{
					{SourcePath: "$.user.name", TargetPath: "customer.name"},
					{SourcePath: "$.user.age", TargetPath: "customer.age"},
				},
			},
			want: `{"customer":{"name":"张三","age":30}}`,
		},
		{
			id:     "B",
			title:  "JSON to XML with declaration",
			source: `{"name":"张三","age":30}`,
			config: &config.MappingConfig{
				Name:                  "scenario-b",
				TargetProtocol:        "XML",
				XMLRootElementName:    "user",
				IncludeXMLDeclaration: true,
				Rules: []config.Rule{
					{SourcePath: "$.name", TargetPath: "name"},
					{SourcePath: "$.age", TargetPath: "age"},
				},
			},
			want: "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<user><name>张三</name><age>30</age></user>",
		},
		{
			id:     "C",
			title:  "XML to JSON, text kept as strings",
			source: `<user><name>张三</name><age>30</age></user>`,
			config: &config.MappingConfig{
				Name:           "scenario-c",
				SourceProtocol: "XML",
				TargetProtocol: "JSON",
				Rules: []config.Rule{
					{SourcePath: "$.name", TargetPath: "customer.name"},
					{SourcePath: "$.age", TargetPath: "customer.age"},
				},
			},
			want: `{"customer":{"name":"张三","age":"30"}}`,
		},
		{
			id:     "C2",
			title:  "XML to JSON, scalar coercion",
			source: `<user><name>张三</name><age>30</age></user>`,
			config: &config.MappingConfig{
				Name:             "scenario-c2",
				SourceProtocol:   "XML",
				TargetProtocol:   "JSON",
				CoerceXMLScalars: true,
				Rules: []config.Rule{
					{SourcePath: "$.name", TargetPath: "customer.name"},
					{SourcePath: "$.age", TargetPath: "customer.age"},
				},
			},
			want: `{"customer":{"name":"张三","age":30}}`,
		},
		{
			id:     "D",
			title:  "MANY_TO_ONE, scripted",
			source: `{"firstName":"张","lastName":"三"}`,
			config: &config.MappingConfig{
				Name: "scenario-d",
				Rules: []config.Rule{{
					SourcePath:        "$.firstName",
					AdditionalSources: []string{"$.lastName"},
					TargetPath:        "fullName",
					MappingType:       config.ManyToOne,
					TransformType:     config.TransformScripted,
					TransformConfig:   &config.TransformConfig{Script: `inputs[0] + " " + inputs[1]`},
				}},
			},
			want: `{"fullName":"张 三"}`,
		},
	}
}

// scenarioResult is one line of the scenarios report.
type scenarioResult struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Passed bool   `json:"passed"`
	Got    string `json:"got,omitempty"`
	Want   string `json:"want,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runScenarios(ctx context.Context, r runner, scenarios []scenario) []scenarioResult {
	results := make([]scenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		out := scenarioResult{ID: sc.id, Title: sc.title}
		res, err := r.Transform(ctx, []byte(sc.source), sc.config)
		switch {
		case err != nil:
			out.Error = err.Error()
		case !res.Success:
			out.Error = res.ErrorMessage
		case res.TransformedData != sc.want:
			out.Got, out.Want = res.TransformedData, sc.want
		default:
			out.Passed = true
		}
		results = append(results, out)
	}
	return results
}

func newScenariosCmd(c *cli) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Replay the reference transformation scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.runner()
			if err != nil {
				return err
			}
			results := runScenarios(cmd.Context(), r, referenceScenarios())

			failed := 0
			for _, res := range results {
				if !res.Passed {
					failed++
				}
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printScenarios(c.printer(), results)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func printScenarios(p *printer, results []scenarioResult) {
	for _, res := range results {
		status := p.pass.Sprint("PASS")
		if !res.Passed {
			status = p.fail.Sprint("FAIL")
		}
		fmt.Fprintf(p.out, "%s  %-3s %s\n", status, res.ID, res.Title)
		switch {
		case res.Error != "":
			fmt.Fprintf(p.out, "      %s %s\n", p.faint.Sprint("error:"), res.Error)
		case !res.Passed:
			fmt.Fprintf(p.out, "      %s %s\n", p.faint.Sprint("want:"), res.Want)
			fmt.Fprintf(p.out, "      %s %s\n", p.faint.Sprint("got: "), res.Got)
		}
	}
}
