package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/cocoonstack/emuhost/savestate"
)

var savesCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Inspect save state slots",
	}
	lsCmd := &cobra.Command{
		Use:     "list TITLE",
		Aliases: []string{"ls"},
		Short:   "List the save slots of a title",
		Args:    cobra.ExactArgs(1),
		RunE:    runSavesList,
	}
	lsCmd.Flags().String("movie-id", "", "list slots of this input recording (hex)")
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print save slot files as they are written",
		Args:  cobra.NoArgs,
		RunE:  runSavesWatch,
	}
	cmd.AddCommand(lsCmd, watchCmd)
	return cmd
}()

func runSavesList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	movieStr, _ := cmd.Flags().GetString("movie-id")
	movieID, err := parseHexID(movieStr)
	if err != nil {
		return err
	}
	_, programID, err := resolveTitle(ctx, args[0])
	if err != nil {
		return err
	}

	dir := conf.SaveStateDir()
	states := savestate.List(ctx, dir, programID, movieID)
	if len(states) == 0 {
		fmt.Printf("No save states for %016X.\n", programID)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0) //nolint:mnd
	_, _ = fmt.Fprintln(w, "SLOT\tFILE\tSIZE\tCREATED\tAGE")
	for _, s := range states {
		name := savestate.SlotName(programID, movieID, s.Slot)
		size := "-"
		if fi, err := os.Stat(savestate.SlotPath(dir, programID, movieID, s.Slot)); err == nil {
			size = formatSize(fi.Size())
		}
		created := time.Unix(int64(s.Time), 0) //nolint:gosec
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s ago\n",
			s.Slot,
			name,
			size,
			created.Local().Format(time.DateTime),
			units.HumanDuration(time.Since(created)),
		)
	}
	w.Flush() //nolint:errcheck,gosec
	return nil
}

func runSavesWatch(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	dir := conf.SaveStateDir()
	log.WithFunc("cmd.saves.watch").Infof(ctx, "watching %s", dir)
	return savestate.Watch(ctx, dir, func(name string) {
		fmt.Printf("%s\t%s\n", time.Now().Format(time.DateTime), name)
	})
}
