package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/conneroisu/mist/internal/demo"
	"github.com/conneroisu/mist/pkg/router"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the route table",
	Long: `List the application's routes in declaration order. The route named
"404" is the fallback for unmatched addresses.

Examples:
  mist routes               # Table output
  mist routes -o json       # JSON output
  mist routes -o yaml       # YAML output`,
	Args: cobra.NoArgs,
	RunE: runRoutes,
}

var routesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(routesCmd)
	routesFlags = AddStandardFlags(routesCmd, OutputFlags)
}

// routeInfo is the printable form of a route.
type routeInfo struct {
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Fallback bool   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

func describeRoutes(routes []router.Route) []routeInfo {
	infos := make([]routeInfo, 0, len(routes))
	for _, r := range routes {
		infos = append(infos, routeInfo{
			Path:     r.Path,
			Name:     r.Name,
			Title:    r.Title,
			Fallback: r.Name == router.NotFoundName,
		})
	}
	return infos
}

func runRoutes(cmd *cobra.Command, args []string) error {
	if err := ValidateOutputFormat(routesFlags.OutputFormat); err != nil {
		return err
	}
	return writeRoutes(cmd.OutOrStdout(), describeRoutes(demo.Routes()), routesFlags.OutputFormat)
}

func writeRoutes(w io.Writer, routes []routeInfo, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(routes)
	case "yaml":
		data, err := yaml.Marshal(routes)
		if err != nil {
			return fmt.Errorf("failed to encode routes: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tNAME\tTITLE")
		for _, r := range routes {
			path := r.Path
			if path == "" {
				path = "-"
			}
			if r.Fallback {
				path += " (fallback)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", path, r.Name, r.Title)
		}
		return tw.Flush()
	}
}
