package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"epub2pdf/state"
)

// Run is convert subcommand action. Source could be local path or URL,
// destination is a directory.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	req := Request{
		Source:          src,
		CoverInput:      cmd.String("cover"),
		TitleBackground: cmd.String("title-bg"),
		FullPageImage:   cmd.String("full-image"),
		FontSize:        cmd.Float("font-size"),
		LineSpacing:     cmd.Float("line-spacing"),
		Margin:          cmd.Float("margin"),
	}
	if err := req.Validate(&env.Cfg.Layout); err != nil {
		return err
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	out, err := NewPipeline(env, WithLocalSources()).Convert(ctx, req, dst, nil)
	if err != nil {
		return fmt.Errorf("unable to convert (%s): %w", src, err)
	}
	log.Info("Document written",
		zap.String("to", out.Path), zap.Int("pages", out.PageCount), zap.Int("issues", len(out.Issues)), zap.Strings("degraded", out.Degraded))
	return nil
}
