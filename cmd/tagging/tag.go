package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tagging-mcp/internal/taxonomy"
	"tagging-mcp/internal/tools"
)

type tagFlags struct {
	labels       []string
	taxonomyFile string
	fieldName    string
	textColumn   string
	provider     string
	model        string
	apiKey       string
	output       string
	reasoning    bool
	asJSON       bool
	quiet        bool
}

func tagCmd(flags *rootFlags) *cobra.Command {
	tf := &tagFlags{}
	cmd := &cobra.Command{
		Use:   "tag <csv>",
		Short: "Classify every row of a CSV file",
		Long: "tag classifies the text column of a CSV file.\n" +
			"Use --labels for a single field or --taxonomy-file (YAML or JSON) for several fields.",
		Example: "  tagging tag reviews.csv --labels positive,negative,neutral --output tagged.csv\n" +
			"  tagging tag tickets.csv --taxonomy-file taxonomy.yaml --provider claude",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(tf.labels) == 0) == (tf.taxonomyFile == "") {
				return fmt.Errorf("exactly one of --labels or --taxonomy-file is required")
			}
			var progress func(done, total int)
			if !tf.quiet {
				progress = newRowProgress(cmd.ErrOrStderr()).Update
			}
			deps, err := flags.deps(progress)
			if err != nil {
				return err
			}

			run := tools.RunParams{
				CSVPath:          args[0],
				TextColumn:       tf.textColumn,
				Provider:         tf.provider,
				Model:            tf.model,
				APIKey:           tf.apiKey,
				OutputPath:       tf.output,
				IncludeReasoning: tf.reasoning,
			}
			var res tools.TagResult
			if tf.taxonomyFile != "" {
				specs, ferr := readTaxonomyFile(tf.taxonomyFile)
				if ferr != nil {
					return ferr
				}
				res, err = deps.Tools.TagAdvanced(cmd.Context(), tools.TagAdvancedParams{RunParams: run, Taxonomy: specs})
			} else {
				res, err = deps.Tools.TagSimple(cmd.Context(), tools.TagParams{RunParams: run, Taxonomy: tf.labels, FieldName: tf.fieldName})
			}

			out := cmd.OutOrStdout()
			if err != nil {
				if res.Error != nil {
					return toolError(out, res)
				}
				return toolError(out, tools.NewFailure(err))
			}
			if tf.asJSON {
				return printJSON(out, res)
			}
			return printSummary(out, res)
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&tf.labels, "labels", "l", nil, "comma-separated labels for a single field")
	f.StringVarP(&tf.taxonomyFile, "taxonomy-file", "t", "", "YAML or JSON file mapping field names to their values")
	f.StringVar(&tf.fieldName, "field-name", "", "output field name for --labels (default "+taxonomy.DefaultFieldName+")")
	f.StringVar(&tf.textColumn, "text-column", "", "column holding the text to classify (default "+tools.DefaultTextColumn+")")
	f.StringVarP(&tf.provider, "provider", "p", "", "LLM provider; overrides DEFAULT_PROVIDER")
	f.StringVarP(&tf.model, "model", "m", "", "model name (default: the provider's default model)")
	f.StringVar(&tf.apiKey, "api-key", "", "API key; overrides the provider's environment variable")
	f.StringVarP(&tf.output, "output", "o", "", "write the tagged CSV to this path")
	f.BoolVar(&tf.reasoning, "reasoning", false, "ask for per-label thinking and a reflection")
	f.BoolVar(&tf.asJSON, "json", false, "print the full result as JSON")
	f.BoolVarP(&tf.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// readTaxonomyFile parses a taxonomy file, keeping the field order of the document.
// Files ending in .json are parsed as JSON, everything else as YAML.
func readTaxonomyFile(path string) (taxonomy.Specs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var specs taxonomy.Specs
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &specs)
	} else {
		err = yaml.Unmarshal(data, &specs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file %s: %w", path, err)
	}
	return specs, nil
}

func printSummary(w io.Writer, res tools.TagResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s/%s, run %s)\n", res.Message, res.Provider, res.Model, res.RunID)
	names := make([]string, 0, len(res.Summary.Fields))
	for name := range res.Summary.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fs := res.Summary.Fields[name]
		fmt.Fprintf(&b, "\n%s:\n", name)
		labels := make([]string, 0, len(fs.Counts))
		for label := range fs.Counts {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if fs.Counts[labels[i]] != fs.Counts[labels[j]] {
				return fs.Counts[labels[i]] > fs.Counts[labels[j]]
			}
			return labels[i] < labels[j]
		})
		for _, label := range labels {
			fmt.Fprintf(&b, "  %-24s %d\n", label, fs.Counts[label])
		}
		if fs.MeanConfidence != nil {
			fmt.Fprintf(&b, "  mean confidence %.2f\n", *fs.MeanConfidence)
		}
	}
	if len(res.Summary.Errors) > 0 {
		b.WriteString("\nerrors:\n")
		for _, e := range res.Summary.Errors {
			fmt.Fprintf(&b, "  row %d: %s\n", e.Row, e.Error)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
