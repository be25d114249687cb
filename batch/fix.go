package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"neon/action"
	"neon/archive"
	"neon/config"
	"neon/editor"
	"neon/engine/xmltk"
	"neon/mei"
	"neon/selection"
	"neon/state"
)

// ErrSinglePage is returned by fix when source holds more than one page.
var ErrSinglePage = errors.New("fix works on a single page")

// Fix is "fix" subcommand. Enabled bulk corrections are applied one chain
// at a time through offline toolkit and resulting MEI is written to
// destination file or STDOUT. When destination is a directory file name is
// derived from the page path.
func Fix(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("fix")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	intents, err := Intents(env.Cfg.Cleanup.Fixes)
	if err != nil {
		return fmt.Errorf("bad cleanup configuration: %w", err)
	}

	name, text, err := readPage(ctx, src)
	if err != nil {
		return err
	}
	storeSource(env, src, log)

	if fi, er := os.Stat(dst); len(dst) > 0 && er == nil && fi.IsDir() {
		dst = filepath.Join(dst, config.PageFileName(name))
	}

	out := io.Writer(os.Stdout)
	if len(dst) > 0 && !cmd.Bool("dry-run") {
		file, er := os.Create(dst)
		if er != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", dst, er)
		}
		defer func() {
			err = multierr.Append(err, file.Close())
		}()
		out = file
	}

	log.Info("Fixing starting", zap.String("page", name), zap.Stringers("fixes", intents), zap.Bool("dry-run", cmd.Bool("dry-run")))
	defer func(start time.Time) {
		log.Info("Fixing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	if cmd.Bool("dry-run") {
		return plan(text, intents, out, log)
	}

	f := &fixer{cfg: &env.Cfg.Editor, log: log}
	if env.Cfg.Editor.JournalPath != "" {
		if f.rec, err = env.Journal(); err != nil {
			return err
		}
	}
	fixed, notes, err := f.fix(ctx, name, text, intents)
	for _, n := range notes {
		log.Info("Correction", zap.Stringer("level", n.Level), zap.String("message", n.Message))
	}
	if err != nil {
		return err
	}
	if env.Rpt != nil {
		env.Rpt.StoreData(slug.Make(name)+"-fixed.mei", []byte(fixed))
	}
	if _, err := io.WriteString(out, fixed); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}

// readPage loads the only page from src.
func readPage(ctx context.Context, src string) (name, text string, err error) {
	count := 0
	err = archive.Sources(ctx, src, func(n string, r io.Reader) error {
		count++
		if count > 1 {
			return fmt.Errorf("%w: %s and %s", ErrSinglePage, name, n)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("unable to read %s: %w", n, err)
		}
		name, text = n, string(data)
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if count == 0 {
		return "", "", fmt.Errorf("no MEI pages found in %s", src)
	}
	return name, text, nil
}

// plan writes chains corrections would dispatch without applying anything.
func plan(text string, intents []action.Intent, out io.Writer, log *zap.Logger) error {
	doc, err := mei.ParseString(text, log)
	if err != nil {
		return err
	}
	for _, intent := range intents {
		p, err := action.Compose(intent, action.Input{Doc: doc, Mode: selection.ModeDefault})
		var refusal *action.Refusal
		switch {
		case errors.As(err, &refusal):
			log.Debug("Nothing to do", zap.Stringer("intent", intent), zap.String("reason", refusal.Message))
			continue
		case err != nil:
			return fmt.Errorf("%s: %w", intent, err)
		}
		if _, err := fmt.Fprintf(out, "%s\t%s\n", intent, action.String(p.Action)); err != nil {
			return err
		}
	}
	return nil
}

type noView struct{}

func (noView) Render(string, string) {}
func (noView) CloseMenu()            {}

type fixer struct {
	cfg *config.EditorConfig
	rec editor.Recorder
	log *zap.Logger
}

// fix loads page into offline toolkit and performs every correction as a
// separate dispatch, so each one sees the result of previous.
func (f *fixer) fix(ctx context.Context, name, text string, intents []action.Intent) (string, editor.Notifications, error) {
	client, err := xmltk.Start(f.log)
	if err != nil {
		return "", nil, err
	}
	defer client.Close()

	if _, err := client.RenderData(ctx, text); err != nil {
		return "", nil, fmt.Errorf("unable to load %s: %w", name, err)
	}

	var (
		notes editor.Notifications
		opts  []editor.Option
	)
	if f.rec != nil {
		opts = append(opts, editor.WithRecorder(f.rec))
	}
	s := editor.New(client, noView{}, &notes, f.cfg, f.log, opts...)
	defer s.Close()

	var failed []string
	for _, intent := range intents {
		seen := len(notes)
		ok, err := s.Perform(ctx, selection.Selection{Mode: selection.ModeDefault}, intent, "", name)
		if err != nil {
			return "", notes, fmt.Errorf("%s: %w", intent, err)
		}
		if !ok && hasErrors(notes[seen:]) {
			failed = append(failed, intent.String())
		}
	}
	if len(failed) > 0 {
		return "", notes, fmt.Errorf("corrections failed: %s", strings.Join(failed, ", "))
	}

	fixed, err := client.GetMEI(ctx)
	if err != nil {
		return "", notes, err
	}
	return fixed, notes, nil
}

func hasErrors(notes editor.Notifications) bool {
	for _, n := range notes {
		if n.Level == editor.LevelError {
			return true
		}
	}
	return false
}
