// Command psdinfo inspects PSD (Photoshop Document) files from the
// command line: canvas metadata and the decoded layer stack.
//
// Usage:
//
//	psdinfo header <input.psd>   Display the file header
//	psdinfo layers <input.psd>   Display the decoded layer stack
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deepteams/psd"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "psdinfo",
	Short: "Inspect PSD (Photoshop Document) files",
}

var headerCmd = &cobra.Command{
	Use:   "header <input.psd>",
	Short: "Display the file header",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeader,
}

var layersCmd = &cobra.Command{
	Use:   "layers <input.psd>",
	Short: "Display the decoded layer stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayers,
}

func init() {
	rootCmd.AddCommand(headerCmd)
	rootCmd.AddCommand(layersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("psdinfo:"), err)
		os.Exit(1)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func runHeader(cmd *cobra.Command, args []string) error {
	data, err := readFile(args[0])
	if err != nil {
		return err
	}
	h, err := psd.ParseHeader(data)
	if err != nil {
		return err
	}

	fmt.Printf("%s       %s\n", bold("File:"), args[0])
	fmt.Printf("%s %d x %d\n", bold("Dimensions:"), h.Width, h.Height)
	fmt.Printf("%s %d\n", bold("Channels:"), h.ChannelCount)
	fmt.Printf("%s     %d-bit\n", bold("Depth:"), h.Depth)
	fmt.Printf("%s %s\n", bold("Color mode:"), colorModeName(h.ColorMode))
	return nil
}

func runLayers(cmd *cobra.Command, args []string) error {
	data, err := readFile(args[0])
	if err != nil {
		return err
	}

	layers, parseErr := psd.ParseLayers(data)
	for i, l := range layers {
		fmt.Printf("%s %s\n", cyan(fmt.Sprintf("[%d]", i)), bold(l.Name))
		fmt.Printf("    blend=%s opacity=%.2f pos=(%d,%d) size=%dx%d\n",
			l.BlendMode, l.Opacity, l.X, l.Y, l.W, l.H)
		if l.GroupOpener || l.GroupCloser {
			fmt.Printf("    %s opener=%v closer=%v expanded=%v\n", yellow("group:"), l.GroupOpener, l.GroupCloser, l.GroupExpanded)
		}
		if l.AdjustmentType != "" {
			fmt.Printf("    %s %s\n", yellow("adjustment:"), l.AdjustmentType)
		}
		if !l.IsVisible {
			fmt.Printf("    %s\n", yellow("hidden"))
		}
	}
	fmt.Printf("%s %d layer(s)\n", green("total:"), len(layers))

	if parseErr != nil {
		return fmt.Errorf("partial result, parse stopped: %w", parseErr)
	}
	return nil
}

func colorModeName(mode uint16) string {
	switch mode {
	case psd.ColorModeGrayscale:
		return "grayscale"
	case psd.ColorModeRGB:
		return "RGB"
	case psd.ColorModeCMYK:
		return "CMYK"
	default:
		return fmt.Sprintf("unknown (%d)", mode)
	}
}
