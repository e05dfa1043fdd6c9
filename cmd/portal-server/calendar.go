package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/medportal/portal/internal/platform/availability"
	"github.com/medportal/portal/pkg/portalclient"
)

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar DOCTOR_ID",
		Short: "Print a doctor's availability for one month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _ := cmd.Flags().GetString("api")
			month, _ := cmd.Flags().GetString("month")
			token, _ := cmd.Flags().GetString("token")
			devUser, _ := cmd.Flags().GetString("dev-user")
			granularity, _ := cmd.Flags().GetInt("granularity")
			remote, _ := cmd.Flags().GetBool("server")

			anchor := availability.DateOf(time.Now())
			if month != "" {
				var err error
				if anchor, err = availability.ParseMonth(month); err != nil {
					return err
				}
			}

			client := portalclient.New(api, portalclient.WithToken(token), portalclient.WithDevUser(devUser))
			var days []availability.ResolvedDay
			if remote {
				m, err := client.Month(cmd.Context(), args[0], anchor)
				if err != nil {
					return err
				}
				days = m.Days
			} else {
				var err error
				if days, err = client.ResolveMonth(cmd.Context(), args[0], anchor, granularity); err != nil {
					return err
				}
			}
			printCalendar(cmd.OutOrStdout(), anchor, days)
			return nil
		},
	}
	cmd.Flags().String("api", "http://localhost:8000/api/v1", "Portal API base URL")
	cmd.Flags().String("month", "", "Month to show as YYYY-MM (default: current month)")
	cmd.Flags().String("token", "", "Bearer token")
	cmd.Flags().String("dev-user", "", "X-Dev-User header for development servers")
	cmd.Flags().Int("granularity", availability.DefaultGranularity, "Slot length in minutes for local resolution")
	cmd.Flags().Bool("server", false, "Ask the server to resolve instead of resolving locally")
	return cmd
}

func printCalendar(w io.Writer, anchor availability.Date, days []availability.ResolvedDay) {
	fmt.Fprintf(w, "Availability for %s\n", anchor.Time().Format("January 2006"))
	if len(days) == 0 {
		fmt.Fprintln(w, "no working days")
		return
	}
	fmt.Fprintf(w, "%-12s %-10s %-22s %s\n", "DATE", "DAY", "SOURCE", "SLOTS")
	for _, d := range days {
		fmt.Fprintf(w, "%-12s %-10s %-22s %s\n", d.Date, d.DayOfWeek, d.Source, formatSlots(d.EffectiveSlots))
	}
}

func formatSlots(slots []availability.TimeSlot) string {
	if len(slots) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		p := s.Range().String()
		if s.IsBooked {
			p += "*"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}
