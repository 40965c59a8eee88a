// Package insights prints conservation insights for a species.
package insights

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/birdo-app/birdo/internal/backend"
	"github.com/birdo-app/birdo/internal/buildinfo"
	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/insights"
	"github.com/birdo-app/birdo/internal/logger"
)

// Command creates the insights command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "insights <species name>",
		Short: "Show conservation insights for a species",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backend.NewClient(backend.Config{
				BaseURL:   settings.Backend.BaseURL,
				Timeout:   settings.Backend.Timeout,
				UserAgent: build.UserAgent(),
			}, logger.Global().Module("birdo"))
			if err != nil {
				return err
			}
			defer client.Close()

			name := strings.Join(args, " ")
			blob, err := client.FetchInsights(cmd.Context(), name)
			if err != nil {
				return err
			}
			if raw {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), blob)
				return err
			}
			return render(cmd.OutOrStdout(), name, insights.Parse(blob))
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the backend response without parsing")
	return cmd
}

func render(w io.Writer, name string, in insights.Insights) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Conservation insights for %s\n", name)
	for _, section := range in.Sections() {
		fmt.Fprintf(&b, "\n%s\n  %s\n", section.Name, section.Content)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
