package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/blazectl/internal/protocol/packet"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
)

func decodeCmd() *cobra.Command {
	var (
		file        string
		contentOnly bool
	)
	cmd := &cobra.Command{
		Use:   "decode [hex]",
		Short: "Dump captured Blaze frames or bare Tdf content",
		Long: `decode parses hex-encoded bytes and prints every frame header with an
indented dump of its content. Whitespace, colons and a 0x prefix are ignored.
With --content the input is a bare Tdf list rather than framed packets.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			switch {
			case len(args) == 1:
				input = args[0]
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				input = string(data)
			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				input = string(data)
			}
			raw, err := parseHex(input)
			if err != nil {
				return err
			}
			return decodeBytes(cmd.OutOrStdout(), raw, contentOnly)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read hex from a file")
	cmd.Flags().BoolVar(&contentOnly, "content", false, "input is Tdf content without a packet header")
	return cmd
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

func decodeBytes(w io.Writer, b []byte, contentOnly bool) error {
	if contentOnly {
		fields, err := tdf.ReadFields(b)
		if err != nil {
			return err
		}
		return tdf.Format(w, fields)
	}

	for off := 0; off < len(b); {
		p, n, err := packet.DecodeFrame(b[off:])
		if err != nil {
			return fmt.Errorf("frame at byte %d: %w", off, err)
		}
		fmt.Fprintf(w, "# %s len=%d\n", p.Head(), p.ContentLen())
		fields, err := p.Body()
		if err != nil {
			_ = p.Release()
			return err
		}
		if err := tdf.Format(w, fields); err != nil {
			_ = p.Release()
			return err
		}
		if err := p.Release(); err != nil {
			return err
		}
		off += n
	}
	return nil
}
