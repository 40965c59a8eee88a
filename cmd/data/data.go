// Package data prints the local observation journal.
package data

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/birdo-app/birdo/internal/conf"
	"github.com/birdo-app/birdo/internal/datastore"
	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

// Command creates the data command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Show populations and recent observations from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !settings.Datastore.Enabled {
				return errors.Newf("the local journal is disabled, set datastore.enabled").
					Component("cli").
					Category(errors.CategoryConfiguration).
					Build()
			}
			store, err := datastore.Open(datastore.Config{
				Type:       settings.Datastore.Type,
				SQLitePath: settings.Datastore.SQLite.Path,
				MySQL: datastore.MySQLConfig{
					Host:     settings.Datastore.MySQL.Host,
					Port:     settings.Datastore.MySQL.Port,
					Username: settings.Datastore.MySQL.Username,
					Password: settings.Datastore.MySQL.Password,
					Database: settings.Datastore.MySQL.Database,
				},
			}, logger.Global().Module("birdo"), nil)
			if err != nil {
				return err
			}
			defer store.Close()

			return report(cmd.Context(), cmd.OutOrStdout(), store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent observations to list")
	return cmd
}

// source is the read side of *datastore.Store.
type source interface {
	PopulationByAnimal(ctx context.Context) ([]datastore.Population, error)
	Recent(ctx context.Context, limit int) ([]datastore.Observation, error)
}

func report(ctx context.Context, w io.Writer, src source, limit int) error {
	pops, err := src.PopulationByAnimal(ctx)
	if err != nil {
		return err
	}
	recent, err := src.Recent(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ANIMAL\tPOPULATION\tSTATUS")
	for _, p := range pops {
		status := ""
		if p.Quantity < datastore.EndangeredThreshold {
			status = "Endangered Species!"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Animal, p.Quantity, status)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "SAVED\tANIMAL\tLOCATION\tCOORDINATES")
	for _, o := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f,%.4f\n",
			o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Animal, o.Location, o.Latitude, o.Longitude)
	}
	return tw.Flush()
}
