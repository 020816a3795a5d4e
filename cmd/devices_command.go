package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sessionwatch/internal/platform"
)

type deviceLister func(ctx context.Context) ([]platform.VideoDevice, error)

func newDevicesCommand() *cobra.Command {
	return newDevicesCommandWith(platform.ListVideoDevices)
}

func newDevicesCommandWith(list deviceLister) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := list(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No video devices found")
				return nil
			}
			rows := make([][]string, 0, len(devices))
			for i, device := range devices {
				name := device.Name
				if name == "" {
					name = "-"
				}
				rows = append(rows, []string{strconv.Itoa(i), device.Path, name})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Device", "Name"}, rows))
			return nil
		},
	}
}
