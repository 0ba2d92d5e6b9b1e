package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/availability"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/drag"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/draft"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/experts"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/timemath"
	"github.com/md-rashed-zaman/expertbook/services/booking-screen-service/internal/workhours"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appVersion = "0.3.0"

// newRootCmd wires flags, SLOTCTL_* environment variables and an optional slotctl.yaml
// into one viper instance shared by every subcommand.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "slotctl",
		Short:         "Browse expert availability and book slots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v, cmd)
		},
	}
	root.Version = appVersion
	root.SetVersionTemplate("slotctl v{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default ./slotctl.yaml if present)")
	pf.String("api-url", "http://localhost:8000", "Experts backend base URL")
	pf.Duration("timeout", 5*time.Second, "HTTP timeout")
	pf.String("timezone", "", "Viewer timezone (IANA name, default local)")
	_ = v.BindPFlag("api_url", pf.Lookup("api-url"))
	_ = v.BindPFlag("timeout", pf.Lookup("timeout"))
	_ = v.BindPFlag("timezone", pf.Lookup("timezone"))

	root.AddCommand(
		newExpertsCmd(v),
		newExpertCmd(v),
		newHoursCmd(v),
		newBusyCmd(v),
		newBookCmd(v),
	)
	return root
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix("SLOTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("slotctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func clientFrom(v *viper.Viper) *experts.Client {
	return experts.NewClient(v.GetString("api_url"), v.GetDuration("timeout"))
}

func parseExpertID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expert id %q", raw)
	}
	return id, nil
}

func newExpertsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "experts",
		Short: "List experts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := clientFrom(v).ListExperts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTITLE\tCOUNTRY")
			for _, e := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.JobTitle, e.CountryName)
			}
			return tw.Flush()
		},
	}
}

func newExpertCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "expert <id>",
		Short: "Show one expert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExpertID(args[0])
			if err != nil {
				return err
			}
			e, err := clientFrom(v).GetExpert(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (#%d)\n", e.Name, e.ID)
			if e.JobTitle != "" {
				fmt.Fprintf(out, "  %s\n", e.JobTitle)
			}
			if e.CountryName != "" {
				fmt.Fprintf(out, "  %s\n", e.CountryName)
			}
			return nil
		},
	}
}

func newHoursCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "hours <id>",
		Short: "Show today's working window in the viewer timezone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExpertID(args[0])
			if err != nil {
				return err
			}
			tz := v.GetString("timezone")
			hours, err := clientFrom(v).WorkingHours(cmd.Context(), id, tz)
			if err != nil {
				return err
			}
			window, err := workhours.NewClock().ResolveWindow(hours, tz)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n",
				window.Min.Format("15:04"), window.Max.Format("15:04"), displayZone(tz))
			return nil
		},
	}
}

func newBusyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "busy <id>",
		Short: "List booked intervals in the viewer timezone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExpertID(args[0])
			if err != nil {
				return err
			}
			busy, err := clientFrom(v).BusyIntervals(cmd.Context(), id, v.GetString("timezone"))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "START\tEND\tMINUTES\tNAME")
			for _, b := range busy {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
					b.Start.Format(timemath.WallClockLayout), b.End.Format(timemath.WallClockLayout),
					int(b.Duration().Minutes()), b.Label)
			}
			return tw.Flush()
		},
	}
}

func newBookCmd(v *viper.Viper) *cobra.Command {
	var (
		start    string
		minutes  int
		name     string
		resolved string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "book <id>",
		Short: "Book a slot given as viewer wall-clock time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExpertID(args[0])
			if err != nil {
				return err
			}
			if minutes <= 0 || minutes > 60 {
				return errors.New("--minutes must be between 1 and 60")
			}
			begin, err := timemath.ParseNaive(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			slot := drag.Candidate{
				Kind:  drag.KindCommitted,
				Start: begin,
				End:   begin.Add(time.Duration(minutes) * time.Minute),
				Label: name,
			}
			d := draft.Draft{Candidate: &slot, DisplayName: name}
			if !d.IsValid() {
				return fmt.Errorf("name must be at least %d characters", draft.MinNameLength)
			}

			client := clientFrom(v)
			tz := v.GetString("timezone")
			if !force {
				busy, err := client.BusyIntervals(cmd.Context(), id, tz)
				if err != nil {
					return err
				}
				if availability.Overlaps(slot.Interval(), availability.Intervals(busy)) {
					return errors.New("slot overlaps an existing appointment (use --force to submit anyway)")
				}
			}

			req, err := d.ToRequest(id, tz, resolved)
			if err != nil {
				return err
			}
			msg, err := client.Book(cmd.Context(), req)
			if err != nil {
				return errors.New(experts.MessageOf(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s for %d minutes\n", msg, req.StartsAt.Format(time.RFC3339), req.DurationMinutes)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Slot start, e.g. 2026-01-28T14:00")
	cmd.Flags().IntVar(&minutes, "minutes", drag.DefaultPrecision, "Slot length in minutes")
	cmd.Flags().StringVar(&name, "name", "", "Name shown on the appointment")
	cmd.Flags().StringVar(&resolved, "resolved-timezone", "", "Timezone the backend expects (default local)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the local overlap check")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func displayZone(tz string) string {
	if tz == "" {
		return "local"
	}
	return tz
}
