// Command cinch is a CLI tool for byte-budget image recompression.
//
// Usage:
//
//	cinch [flags] -target-size 100KB <input> [output]
//	cinch -analyze <input>
//
// Examples:
//
//	cinch -target-size 100KB photo.jpg compressed.jpg
//	cinch -target-size 2MB -max-width 1920 photo.png out.jpg
//	cinch -format webp -target-size 150KB photo.jpg out.webp
//	cinch -analyze photo.jpg
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shamspias/cinch"
)

func main() {
	var (
		targetSize string
		format     string
		maxWidth   int
		maxHeight  int
		initialQ   int
		minQ       int
		keepEXIF   bool
		sharpen    bool
		analyze    bool
	)

	flag.StringVar(&targetSize, "target-size", "", "Target output size (e.g. 100KB, 2MB). Required unless -analyze.")
	flag.StringVar(&format, "format", "auto", "Output format: auto|jpeg|png|webp")
	flag.IntVar(&maxWidth, "max-width", 0, "Maximum width (0 = no limit)")
	flag.IntVar(&maxHeight, "max-height", 0, "Maximum height (0 = no limit)")
	flag.IntVar(&initialQ, "initial-quality", 0, "Upper quality bound (0 = default)")
	flag.IntVar(&minQ, "min-quality", 0, "Lower quality bound (0 = default)")
	flag.BoolVar(&keepEXIF, "keep-exif", false, "Preserve EXIF metadata (platform encoder only)")
	flag.BoolVar(&sharpen, "sharpen", false, "Apply adaptive sharpening to the winning candidate")
	flag.BoolVar(&analyze, "analyze", false, "Analyze image without compressing")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cinch [flags] -target-size 100KB <input> [output]")
		fmt.Fprintln(os.Stderr, "       cinch -analyze <input>")
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
		os.Exit(1)
	}

	input := args[0]

	if analyze {
		runAnalyze(input)
		return
	}

	if targetSize == "" {
		fmt.Fprintln(os.Stderr, "Error: -target-size is required")
		os.Exit(1)
	}

	output := ""
	if len(args) >= 2 {
		output = args[1]
	} else {
		ext := filepath.Ext(input)
		base := strings.TrimSuffix(input, ext)
		output = base + "_compressed" + ext
	}

	targetBytes, err := parseSize(targetSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid target-size %q: %v\n", targetSize, err)
		os.Exit(1)
	}

	opts := cinch.DefaultOptions()
	opts.TargetSizeKB = targetBytes / 1024
	if opts.TargetSizeKB == 0 {
		opts.TargetSizeKB = 1
	}

	switch strings.ToLower(format) {
	case "auto":
		opts.Format = cinch.Auto
	case "jpeg", "jpg":
		opts.Format = cinch.JPEG
	case "png":
		opts.Format = cinch.PNG
	case "webp":
		opts.Format = cinch.WEBP
	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", format)
		os.Exit(1)
	}

	opts.MaxWidth = maxWidth
	opts.MaxHeight = maxHeight
	if initialQ > 0 {
		opts.InitialQuality = initialQ
	}
	if minQ > 0 {
		opts.MinQuality = minQ
	}
	opts.KeepEXIF = keepEXIF
	opts.Sharpen = sharpen

	result, err := cinch.CompressFile(context.Background(), input, output, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// If the search picked a different format than the output extension
	// implies, rename so the file opens correctly.
	actualExt := extFor(result.Format)
	outExt := strings.ToLower(filepath.Ext(output))
	if outExt != actualExt && !(actualExt == ".jpg" && outExt == ".jpeg") {
		newOutput := strings.TrimSuffix(output, filepath.Ext(output)) + actualExt
		if err := os.Rename(output, newOutput); err == nil {
			output = newOutput
			fmt.Fprintf(os.Stderr, "Note: format changed to %s -> saved as %s\n", result.Format, newOutput)
		}
	}

	fmt.Println(result)
}

func runAnalyze(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", path, err)
		os.Exit(1)
	}

	info, _ := os.Stat(path)
	stats := cinch.Analyze(img)

	fmt.Printf("File:         %s\n", path)
	if info != nil {
		fmt.Printf("Size:         %s\n", humanBytes(info.Size()))
	}
	fmt.Printf("Dimensions:   %d x %d\n", stats.Width, stats.Height)
	fmt.Printf("Alpha:        %v\n", stats.HasAlpha)
	fmt.Printf("Grayscale:    %v\n", stats.IsGrayscale)
	fmt.Printf("Unique colors: %d+\n", stats.UniqueColors)
	fmt.Printf("Entropy:      %.2f bits\n", stats.Entropy)
	fmt.Printf("Edge density: %.1f%%\n", stats.EdgeDensity*100)
	fmt.Printf("Brightness:   %.0f\n", stats.MeanBrightness)
	fmt.Printf("Contrast:     %.1f\n", stats.Contrast)
	fmt.Println()
	fmt.Printf("Recommended format:  %s\n", stats.RecommendedFormat)
	fmt.Printf("Recommended quality: %s\n", stats.RecommendedQuality)
	fmt.Printf("Est. compression:    ~%.1fx\n", stats.EstimatedCompression)
}

func parseSize(s string) (int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	multiplier := 1
	switch {
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(n * float64(multiplier)), nil
}

func humanBytes(b int64) string {
	switch {
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func extFor(f cinch.Format) string {
	switch f {
	case cinch.PNG:
		return ".png"
	case cinch.WEBP:
		return ".webp"
	default:
		return ".jpg"
	}
}
