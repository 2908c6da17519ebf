package main

import (
	"fmt"
	"os"

	"github.com/Neumenon/dmx/dmx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize a DMX file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			logrus.Fatalf("open: %v", err)
		}
		defer f.Close()

		header, doc, err := dmx.Deserialize(f)
		if err != nil {
			logrus.Fatalf("decode %s: %v", args[0], err)
		}

		attrs := 0
		classes := map[string]int{}
		for _, e := range doc.Elements() {
			attrs += e.Len()
			classes[e.Class()]++
		}

		fmt.Printf("encoding: %s %d\n", header.Encoding, header.EncodingVersion)
		fmt.Printf("format:   %s %d\n", header.Format, header.FormatVersion)
		root := doc.Root()
		fmt.Printf("root:     %s %q (%s)\n", root.Class(), root.Name(), root.ID())
		fmt.Printf("elements: %d (%d attributes)\n", doc.Len(), attrs)
		for class, n := range classes {
			logrus.Debugf("class %s: %d", class, n)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
