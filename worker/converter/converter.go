package converter

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

type Options struct {
	Format  string
	Width   int
	Height  int
	Crop    bool
	Quality int
}

type Converter struct {
	logger *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// Convert resizes and/or reformats an image. Zero width and height keep
// the source dimensions; with only one set the other follows the aspect
// ratio; Crop fills the exact box instead of fitting inside it.
func (c *Converter) Convert(inputPath, outputPath string, opts Options) error {
	c.logger.Info("Starting image conversion",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", opts.Format),
	)

	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}

	var processed *image.NRGBA
	switch {
	case opts.Width <= 0 && opts.Height <= 0:
		processed = imaging.Clone(src)
	case opts.Crop:
		width, height := opts.Width, opts.Height
		if width <= 0 {
			width = src.Bounds().Dx()
		}
		if height <= 0 {
			height = src.Bounds().Dy()
		}
		processed = imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	default:
		// imaging.Resize keeps aspect ratio when one dimension is zero.
		processed = imaging.Resize(src, max(opts.Width, 0), max(opts.Height, 0), imaging.Lanczos)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	switch opts.Format {
	case "", "keep":
		err = imaging.Save(processed, outputPath)
	case "jpg", "jpeg":
		err = imaging.Save(processed, outputPath, imaging.JPEGQuality(quality))
	case "png", "gif", "bmp", "tif", "tiff":
		err = imaging.Save(processed, outputPath)
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	c.logger.Info("Image conversion completed", zap.String("output", outputPath))
	return nil
}
