package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocoonstack/emuhost/title"
)

var titleCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "title",
		Short: "Title resolution and cache",
	}
	idCmd := &cobra.Command{
		Use:   "id TITLE",
		Short: "Print the program id of a title",
		Args:  cobra.ExactArgs(1),
		RunE:  runTitleID,
	}
	pruneCmd := &cobra.Command{
		Use:   "prune [ARCHIVE...]",
		Short: "Remove cached archive extractions, keeping those of the given archives",
		RunE:  runTitlePrune,
	}
	cmd.AddCommand(idCmd, pruneCmd)
	return cmd
}()

func runTitleID(cmd *cobra.Command, args []string) error {
	path, id, err := resolveTitle(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	size := "-"
	if fi, err := os.Stat(path); err == nil {
		size = formatSize(fi.Size())
	}
	fmt.Printf("%016X\t%s\t%s\n", id, size, path)
	return nil
}

func runTitlePrune(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	keep := make(map[string]struct{}, len(args))
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return fmt.Errorf("stat %s: %w", a, err)
		}
		keep[title.CacheKey(a, fi)] = struct{}{}
	}
	removed, err := title.NewResolver(conf.TitleCacheDir()).Prune(ctx, keep)
	if len(removed) == 0 && err == nil {
		fmt.Println("Nothing to prune.")
	}
	return err
}
