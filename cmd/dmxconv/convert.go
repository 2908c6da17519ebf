package main

import (
	"os"

	"github.com/Neumenon/dmx/dmx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	convertEncoding string
	convertVersion  int
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Re-encode a DMX file",
	Long: `Decode a DMX file and write it back with the requested encoding.
The format name and version are carried over from the input header.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		in, err := os.Open(args[0])
		if err != nil {
			logrus.Fatalf("open input: %v", err)
		}
		defer in.Close()

		header, doc, err := dmx.Deserialize(in)
		if err != nil {
			logrus.Fatalf("decode %s: %v", args[0], err)
		}
		logrus.Debugf("decoded %d elements (%s %d)", doc.Len(), header.Encoding, header.EncodingVersion)

		header.Encoding = convertEncoding
		header.EncodingVersion = convertVersion

		out, err := os.Create(args[1])
		if err != nil {
			logrus.Fatalf("create output: %v", err)
		}
		defer out.Close()

		if err := dmx.Serialize(out, doc, header); err != nil {
			logrus.Fatalf("encode %s: %v", args[1], err)
		}
		logrus.Debugf("wrote %s as %s %d", args[1], header.Encoding, header.EncodingVersion)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertEncoding, "encoding", "e", dmx.EncodingBinary,
		"output encoding: binary, keyvalues2, keyvalues2_flat")
	convertCmd.Flags().IntVar(&convertVersion, "encoding-version", 5,
		"output encoding version (binary: 1-5, keyvalues2: 1)")
	rootCmd.AddCommand(convertCmd)
}
