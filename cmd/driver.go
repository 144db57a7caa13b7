package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cocoonstack/emuhost/driver"
)

var driverCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driver",
		Short: "Graphics driver selection",
	}
	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Resolve the configured graphics driver and report the result",
		Args:  cobra.NoArgs,
		RunE:  runDriverProbe,
	}
	cmd.AddCommand(probeCmd)
	return cmd
}()

func runDriverProbe(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	loader := driver.New()
	if !loader.Supported() {
		fmt.Println("Custom driver loading is not supported on this device.")
		return nil
	}
	h := loader.Load(ctx, driver.RequestFromConfig(conf))
	fmt.Printf("path:   %s\n", h.Path)
	fmt.Printf("custom: %t\n", h.Custom)
	fmt.Printf("flags:  %s\n", h.Flags)
	if h.Err != nil {
		return fmt.Errorf("open %s: %w", h.Path, h.Err)
	}
	fmt.Println("status: loaded")
	return nil
}
