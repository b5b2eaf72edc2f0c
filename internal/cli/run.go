package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"FactorPipe/internal/domain/models"
	"FactorPipe/internal/services/factors"
	"FactorPipe/internal/services/pipeline"
	"FactorPipe/internal/usecase"
	"FactorPipe/pkg/metrics"
	"FactorPipe/pkg/util"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type RunCmd struct{}

func NewRunCmd() *RunCmd {
	return &RunCmd{}
}

func (c *RunCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline over a session range and print the result table",
		Long: "Runs the percent_difference pipeline (SMA(close, short) vs SMA(close, long)) " +
			"unless --expr or --file define other columns.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := cmd.Flags().GetString("start")
			if err != nil {
				return fmt.Errorf("failed to get start flag: %w", err)
			}
			end, err := cmd.Flags().GetString("end")
			if err != nil {
				return fmt.Errorf("failed to get end flag: %w", err)
			}
			short, err := cmd.Flags().GetInt("short")
			if err != nil {
				return fmt.Errorf("failed to get short flag: %w", err)
			}
			long, err := cmd.Flags().GetInt("long")
			if err != nil {
				return fmt.Errorf("failed to get long flag: %w", err)
			}
			exprs, err := cmd.Flags().GetStringArray("expr")
			if err != nil {
				return fmt.Errorf("failed to get expr flag: %w", err)
			}
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return fmt.Errorf("failed to get file flag: %w", err)
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			workers, err := cmd.Flags().GetInt("workers")
			if err != nil {
				return fmt.Errorf("failed to get workers flag: %w", err)
			}
			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return fmt.Errorf("failed to get timeout flag: %w", err)
			}
			if format != formatTable && format != formatJSON {
				return fmt.Errorf("invalid format: %s", format)
			}

			from, to, err := util.ParseSessionRange(start, end)
			if err != nil {
				return err
			}
			p, err := buildPipeline(exprs, file, short, long)
			if err != nil {
				return err
			}

			log := newLogger(cmd)
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				var cancelTimeout context.CancelFunc
				ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
				defer cancelTimeout()
			}

			store, release, err := openStore(ctx, cmd, log)
			if err != nil {
				return err
			}
			defer release()

			engine := usecase.NewPipelineEngine(store, metrics.Nop{}, log, workers)
			defer engine.Close()

			res, err := engine.RunPipeline(ctx, p, from, to)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			writeTable(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().String("start", "2015-05-05", "first session (YYYY-MM-DD)")
	cmd.Flags().String("end", "2015-05-05", "last session (YYYY-MM-DD)")
	cmd.Flags().Int("short", 10, "short SMA window for percent_difference")
	cmd.Flags().Int("long", 30, "long SMA window for percent_difference")
	cmd.Flags().StringArray("expr", nil, "output column as name=expression, e.g. mom='returns(20)'")
	cmd.Flags().StringP("file", "f", "", "YAML file mapping column names to expression trees")
	cmd.Flags().String("format", formatTable, "output format (table, json)")
	cmd.Flags().Int("workers", 4, "sessions evaluated in parallel")
	cmd.Flags().Duration("timeout", 5*time.Minute, "abort the run after this long (0 disables)")
	return cmd
}

// buildPipeline merges --file and --expr columns. With neither, it returns
// the percent_difference pipeline.
func buildPipeline(exprs []string, file string, short, long int) (*pipeline.Pipeline, error) {
	if len(exprs) == 0 && file == "" {
		return pipeline.MakePercentDifference(short, long), nil
	}

	p := pipeline.New(nil)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read expression file: %w", err)
		}
		var trees map[string]factors.Expr
		if err := yaml.Unmarshal(b, &trees); err != nil {
			return nil, fmt.Errorf("parse expression file: %w", err)
		}
		fromFile, err := pipeline.FromExprs(trees)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		p = fromFile
	}
	for _, e := range exprs {
		name, src, ok := util.SplitAssignment(e)
		if !ok {
			return nil, fmt.Errorf("invalid --expr %q, want name=expression", e)
		}
		f, err := factors.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("--expr %s: %w", name, err)
		}
		if err := p.Add(name, f); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func writeTable(w io.Writer, res *models.PipelineResult) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetBorder(true)
	table.SetHeader(append([]string{"session", "symbol"}, res.Columns...))

	aligns := []int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT}
	for range res.Columns {
		aligns = append(aligns, tablewriter.ALIGN_RIGHT)
	}
	table.SetColumnAlignment(aligns)

	for _, row := range res.Rows {
		line := []string{util.FormatSession(row.Session), row.Symbol}
		for _, v := range row.Values {
			line = append(line, formatValue(v))
		}
		table.Append(line)
	}
	table.Render()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func writeJSON(w io.Writer, res *models.PipelineResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
