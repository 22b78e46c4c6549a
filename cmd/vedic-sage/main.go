package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Abhiiiiiinav/Vedic-Sage/internal/config"
	"github.com/Abhiiiiiinav/Vedic-Sage/internal/server"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/extract"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/nakshatra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vedic-sage",
		Short:         "Vedic Sage: chart relay and cache for the Free Astrology API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newChartCmd(),
		newNakshatraCmd(),
	)
	return root
}

// loadConfig reads the config file and environment and sets up logging.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Setup(cfg.Logging())
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chart HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close backends")
				}
			}()

			srv, err := server.New(server.Config{
				Service:        a.service,
				Upstream:       a.client,
				AllowedOrigins: cfg.CORS.AllowedOrigins,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx, cfg.Listen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (environment only when empty)")
	return cmd
}

// chartOutput is printed by the chart command.
type chartOutput struct {
	ChartID   string            `json:"chart_id"`
	Division  string            `json:"division"`
	ChartName string            `json:"chart_name"`
	Cached    bool              `json:"cached"`
	Positions extract.Positions `json:"positions"`
	SVG       string            `json:"svg,omitempty"`
}

func newChartCmd() *cobra.Command {
	var (
		configPath string
		withSVG    bool
	)

	intFlags := []string{"year", "month", "date", "hours", "minutes", "seconds"}
	floatFlags := []string{"latitude", "longitude", "timezone"}
	stringFlags := []string{"observation_point", "ayanamsha"}

	cmd := &cobra.Command{
		Use:   "chart <division>",
		Short: "Fetch one divisional chart and print its extracted positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := chart.LookupVariant(args[0])
			if err != nil {
				return err
			}

			raw := make(map[string]any)
			for _, name := range append(append(intFlags, floatFlags...), stringFlags...) {
				if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
					raw[name] = f.Value.String()
				}
			}
			birth, err := chart.Normalize(raw)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.service.Chart(cmd.Context(), v.Code, birth)
			if err != nil {
				return err
			}

			out := chartOutput{
				ChartID:   res.ChartID,
				Division:  v.Code,
				ChartName: res.ChartName,
				Cached:    res.Cached,
				Positions: extract.ExtractPositions(res.SVG),
			}
			if withSVG {
				out.SVG = res.SVG
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to config file")
	flags.BoolVar(&withSVG, "svg", false, "include the raw SVG in the output")
	for _, name := range intFlags {
		flags.Int(name, 0, "birth "+name)
	}
	for _, name := range floatFlags {
		flags.Float64(name, 0, "birth "+name)
	}
	flags.String("observation_point", chart.DefaultObservationPoint, "topocentric or geocentric")
	flags.String("ayanamsha", chart.DefaultAyanamsha, "ayanamsha system")
	return cmd
}

func newNakshatraCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nakshatra <degree>",
		Short: "Print the nakshatra, pada and lord of an ecliptic longitude",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deg, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid degree %q: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), nakshatra.FromLongitude(deg))
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
