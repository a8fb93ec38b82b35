package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fifosk/ebook-tools-sub003/internal/language"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, entry := range language.Supported() {
				notes := ""
				if entry.Script != nil {
					notes = entry.Script.Name + " script"
				}
				if entry.SegmentationRequired {
					if notes != "" {
						notes += ", "
					}
					notes += "segmented output"
				}
				if notes != "" {
					notes = "  (" + notes + ")"
				}
				fmt.Printf("%-8s %s%s\n", entry.Code, entry.Name, notes)
			}
			return nil
		},
	}
}
