package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"neon/action"
	"neon/archive"
	"neon/linkage"
	"neon/mei"
	"neon/selection"
	"neon/state"
)

// Check is "check" subcommand. It reports linkage problems and everything
// enabled bulk corrections would change for every page of the source.
func Check(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("check")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	intents, err := Intents(env.Cfg.Cleanup.Fixes)
	if err != nil {
		return fmt.Errorf("bad cleanup configuration: %w", err)
	}
	storeSource(env, src, log)

	log.Info("Checking starting", zap.String("source", src), zap.Stringers("fixes", intents))
	defer func(start time.Time) {
		log.Info("Checking completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	findings, pages, err := check(ctx, src, intents, log)
	if err != nil {
		return err
	}
	for _, f := range findings {
		log.Info("Problem found", zap.String("page", f.Page), zap.String("check", f.Check), zap.Strings("ids", f.IDs))
	}
	log.Info("Pages checked", zap.Int("pages", pages), zap.Int("findings", len(findings)))

	if env.Rpt != nil {
		if data, err := json.MarshalIndent(findings, "", "  "); err == nil {
			env.Rpt.StoreData(slug.Make(filepath.Base(src))+"-findings.json", data)
		}
	}

	if len(findings) > 0 && (cmd.Bool("strict") || env.Cfg.Cleanup.Strict) {
		return fmt.Errorf("%d %w", len(findings), ErrFindings)
	}
	return nil
}

// check processes every page under src. Pages which cannot be parsed are
// logged and skipped.
func check(ctx context.Context, src string, intents []action.Intent, log *zap.Logger) (findings []Finding, pages int, err error) {
	err = archive.Sources(ctx, src, func(name string, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := mei.Read(r, log)
		if err != nil {
			log.Warn("Skipping page", zap.String("page", name), zap.Error(err))
			return nil
		}
		pages++
		found, err := checkPage(doc, name, intents)
		if err != nil {
			return fmt.Errorf("page %s: %w", name, err)
		}
		findings = append(findings, found...)
		return nil
	})
	return findings, pages, err
}

func checkPage(doc *mei.Document, name string, intents []action.Intent) ([]Finding, error) {
	var findings []Finding

	if invalid := linkage.InvalidSyllables(doc); len(invalid) > 0 {
		f := Finding{Page: name, Check: checkInvalidLinked}
		for _, el := range invalid {
			f.IDs = append(f.IDs, el.ID)
		}
		findings = append(findings, f)
	}

	for _, intent := range intents {
		plan, err := action.Compose(intent, action.Input{Doc: doc, Mode: selection.ModeDefault})
		var refusal *action.Refusal
		switch {
		case errors.As(err, &refusal):
			// nothing to fix
			continue
		case err != nil:
			return nil, fmt.Errorf("%s: %w", intent, err)
		}
		findings = append(findings, Finding{Page: name, Check: intent.String(), IDs: targets(plan.Action)})
	}
	return findings, nil
}

// storeSource puts copy of the source as it was before processing into
// debug report, if one was requested.
func storeSource(env *state.LocalEnv, src string, log *zap.Logger) {
	if err := env.Rpt.StoreCopy("source", src); err != nil {
		log.Warn("Unable to store source in debug report", zap.String("source", src), zap.Error(err))
	}
}
