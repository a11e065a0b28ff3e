// Command memectl renders memes offline and prints share links.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
	"meme-studio/editor"
	"meme-studio/export"
	"meme-studio/render"
)

const usage = `usage:
  memectl render -image in.png -layers layers.json -out meme.png [-ratio 2] [-fonts dir]
  memectl share -id <memeID> [-base https://host] [-copy]`

var errUsage = errors.New(usage)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}
	if err := run(os.Args[1:], os.Stdout, clipboard.WriteAll); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		logrus.Fatal(err)
	}
}

func run(args []string, stdout io.Writer, copyText func(string) error) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "render":
		return runRender(args[1:], stdout)
	case "share":
		return runShare(args[1:], stdout, copyText)
	}
	return errUsage
}

func runRender(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	imagePath := fs.String("image", "", "Background image (png, jpeg, gif or webp).")
	layersPath := fs.String("layers", "", "JSON array of layer records in percent coordinates.")
	outPath := fs.String("out", "meme.png", "Where to write the PNG.")
	ratio := fs.Float64("ratio", render.DefaultPixelRatio, "Pixel ratio of the export.")
	fontsDir := fs.String("fonts", os.Getenv("FONTS_PATH"), "Directory of extra .ttf fonts.")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *imagePath == "" {
		return errUsage
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := editor.DecodeImage(f)
	if err != nil {
		return fmt.Errorf("%s: %w", *imagePath, err)
	}

	var records []core.LayerRecord
	if *layersPath != "" {
		data, err := os.ReadFile(*layersPath)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("%s: %w", *layersPath, err)
		}
	}

	fonts := render.NewFontBook()
	if *fontsDir != "" {
		if _, err := fonts.LoadDir(*fontsDir); err != nil {
			return err
		}
	}

	bg := &editor.Background{Image: img, Source: *imagePath}
	bounds := bg.ImageBounds()
	scene := editor.Scene{
		Background: img,
		Bounds:     bounds,
		Layers:     editor.FromRecordLayers(records, bounds),
	}
	out, err := render.NewRenderer(*ratio, fonts).Render(scene)
	if err != nil {
		return err
	}

	w, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := render.EncodePNG(w, out); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%dx%d, %d layers)\n", *outPath, out.Bounds().Dx(), out.Bounds().Dy(), len(records))
	return nil
}

func runShare(args []string, stdout io.Writer, copyText func(string) error) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	base := fs.String("base", os.Getenv("PUBLIC_BASE_URL"), "Public URL of the meme server.")
	id := fs.String("id", "", "Meme id.")
	title := fs.String("title", "", "Text for the social links.")
	copyLink := fs.Bool("copy", false, "Copy the viewer link to the clipboard.")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *id == "" || *base == "" {
		return errUsage
	}

	pipeline := export.NewPipeline(nil, nil, nil, *base)
	record := &core.MemeRecord{ID: *id}
	link := pipeline.ShareLink(record)
	social := pipeline.SocialLinks(record, *title)

	fmt.Fprintf(stdout, "link:     %s\ntwitter:  %s\nfacebook: %s\n", link, social.Twitter, social.Facebook)
	if *copyLink {
		if err := copyText(link); err != nil {
			return fmt.Errorf("failed to copy link: %w", err)
		}
		fmt.Fprintln(stdout, "link copied to clipboard")
	}
	return nil
}
