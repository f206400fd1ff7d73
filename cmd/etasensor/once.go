package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"etasensor/internal/config"
	"etasensor/internal/export"
	"etasensor/internal/reconcile"
	"etasensor/internal/sensor"
)

var (
	onceFrom    string
	onceTo      string
	onceRoute   string
	onceOffset  int
	onceLimit   int
	onceFeed    string
	onceFeedURL string
	onceICS     string
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one cycle for a stop pair and print the result",
	Example: `  etasensor once --from "Lynn" --to "North Station" --route "Newburyport/Rockport Line"
  etasensor once --from Harvard --to "Park Street" --route Red --ics red.ics`,
	RunE: runOnce,
}

func init() {
	f := onceCmd.Flags()
	f.StringVar(&onceFrom, "from", "", "departure stop name")
	f.StringVar(&onceTo, "to", "", "arrival stop name")
	f.StringVar(&onceRoute, "route", "", "route id, short name or long name")
	f.IntVar(&onceOffset, "offset", config.DefaultOffsetMinutes, "ignore departures sooner than this many minutes")
	f.IntVar(&onceLimit, "limit", config.DefaultLimit, "upcoming departures to list")
	f.StringVar(&onceFeed, "feed", sensor.FeedSchedules, "schedules, predictions or gtfs-rt")
	f.StringVar(&onceFeedURL, "feed-url", "", "GTFS-Realtime TripUpdates url (gtfs-rt feed)")
	f.StringVar(&onceICS, "ics", "", "also write the departures to this .ics file")
	onceCmd.MarkFlagRequired("from")
	onceCmd.MarkFlagRequired("to")
	onceCmd.MarkFlagRequired("route")
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true).Padding(1, 0)
	stateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	delayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func runOnce(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	limit, offset := onceLimit, onceOffset
	p := config.Prediction{
		DepartFrom:    onceFrom,
		ArriveAt:      onceTo,
		Route:         onceRoute,
		OffsetMinutes: &offset,
		Limit:         &limit,
		Feed:          onceFeed,
		FeedURL:       onceFeedURL,
	}
	if err := config.Validate(p); err != nil {
		return err
	}

	client := newClient(logger)
	var res sensor.Result
	var s *sensor.Sensor
	var setupErr error

	_ = spinner.New().
		Title(fmt.Sprintf("Fetching %s departures from %s...", onceRoute, onceFrom)).
		Action(func() {
			table := buildLookup(ctx, client, logger)
			sensors, err := sensor.FromSpecs(p.Expand(), client, sensor.Deps{
				Stops:  table,
				Routes: table,
				Logger: logger,
			})
			if err != nil {
				setupErr = err
				return
			}
			s = sensors[0]
			res = s.Update(ctx)
		}).
		Run()

	if setupErr != nil {
		return setupErr
	}
	if !res.OK {
		fmt.Println(errorStyle.Render(fmt.Sprintf("Update failed (%s)", res.Reason)))
		return res.Err
	}

	printProjection(s.Name(), res.Projection)

	if onceICS != "" {
		if err := writeICS(onceICS, s.Name(), res.Projection); err != nil {
			return err
		}
		fmt.Println(mutedStyle.Render("Wrote " + onceICS))
	}
	return nil
}

func printProjection(name string, p reconcile.Projection) {
	l := p.Labels
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s to %s", l.Route, l.DepartFrom, l.ArriveAt)))

	if p.Empty() {
		fmt.Println(mutedStyle.Render(reconcile.NothingScheduled))
		return
	}

	line := "Next departure in " + stateStyle.Render(p.State)
	if d := p.Delay(); d != nil {
		line += delayStyle.Render(" (delayed " + *d + ")")
	}
	fmt.Println(line)

	meta := []string{name}
	if p.DirectionLabel != "" {
		meta = append(meta, p.DirectionLabel)
	}
	if l.RouteType != "" {
		meta = append(meta, l.RouteType)
	}
	fmt.Println(mutedStyle.Render(strings.Join(meta, " · ")))

	if len(p.Upcoming) == 0 {
		return
	}
	fmt.Println()
	for _, d := range p.Upcoming {
		row := fmt.Sprintf("  • %-12s %s", d.ETA, mutedStyle.Render(d.At.Local().Format("15:04")))
		if d.Delay != nil {
			row += delayStyle.Render(" +" + *d.Delay)
		}
		fmt.Println(row)
	}
}

func writeICS(path, name string, p reconcile.Projection) (err error) {
	if p.Empty() {
		return errors.New("nothing scheduled, no calendar written")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.ICS(name, p, time.Now(), f)
}
