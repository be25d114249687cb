package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	cli "github.com/urfave/cli/v3"

	"neon/action"
	"neon/config"
	"neon/editor"
	"neon/journal"
	"neon/mei"
	"neon/mei/meitest"
	"neon/state"
)

var defaultFixes = []string{"removeEmptyNeumes", "removeEmptySyllables", "removeOutOfBounds", "untoggleInvalidObliques", "untoggleInvalidSyllables"}

func writePage(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func defaultIntents(t *testing.T) []action.Intent {
	t.Helper()
	intents, err := Intents(defaultFixes)
	if err != nil {
		t.Fatalf("Intents() error = %v", err)
	}
	return intents
}

func TestIntents(t *testing.T) {
	t.Run("keeps order and drops duplicates", func(t *testing.T) {
		got, err := Intents([]string{"removeOutOfBounds", "removeEmptyNeumes", "removeOutOfBounds"})
		if err != nil {
			t.Fatalf("Intents() error = %v", err)
		}
		want := []action.Intent{action.IntentRemoveOutOfBounds, action.IntentRemoveEmptyNeumes}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Intents() = %v, want %v", got, want)
		}
	})

	t.Run("reports every bad name", func(t *testing.T) {
		_, err := Intents([]string{"removeEverything", "remove", "removeEmptyNeumes"})
		if err == nil {
			t.Fatal("Intents() expected error")
		}
		if !errors.Is(err, action.ErrUnknownIntent) {
			t.Errorf("error = %v, want ErrUnknownIntent", err)
		}
		if !strings.Contains(err.Error(), "remove is not a page wide correction") {
			t.Errorf("error = %v, must mention selection intent", err)
		}
	})
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "folio-1.mei", meitest.PageMEI)
	writePage(t, dir, "broken.mei", "<html/>")
	writePage(t, dir, "clean.mei", meitest.Staves(
		`<syllable xml:id="a"><syl xml:id="sa">a</syl><neume xml:id="na"><nc xml:id="x"/></neume></syllable>`,
	))

	findings, pages, err := check(context.Background(), dir, defaultIntents(t), meitest.Logger(t))
	if err != nil {
		t.Fatalf("check() error = %v", err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
	want := []Finding{
		{Page: "folio-1.mei", Check: "removeEmptyNeumes", IDs: []string{"n7"}},
		{Page: "folio-1.mei", Check: "removeEmptySyllables", IDs: []string{"sy7"}},
		{Page: "folio-1.mei", Check: "removeOutOfBounds", IDs: []string{"nc7", "dl1"}},
		{Page: "folio-1.mei", Check: "untoggleInvalidObliques", IDs: []string{"nc6"}},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("check() = %+v\nwant %+v", findings, want)
	}
}

func TestCheckInvalidLinks(t *testing.T) {
	doc := meitest.Parse(t, meitest.Staves(
		`<syllable xml:id="x" precedes="#y"><syl xml:id="sx">x</syl></syllable>`,
		`<syllable xml:id="y"><syl xml:id="sy">y</syl></syllable>`,
	))
	intents, err := Intents([]string{"untoggleInvalidSyllables"})
	if err != nil {
		t.Fatal(err)
	}
	findings, err := checkPage(doc, "p", intents)
	if err != nil {
		t.Fatalf("checkPage() error = %v", err)
	}
	want := []Finding{
		{Page: "p", Check: checkInvalidLinked, IDs: []string{"x"}},
		{Page: "p", Check: "untoggleInvalidSyllables", IDs: []string{"x"}},
	}
	if !reflect.DeepEqual(findings, want) {
		t.Errorf("checkPage() = %+v\nwant %+v", findings, want)
	}
}

func runCommand(t *testing.T, c *cli.Command, args ...string) error {
	t.Helper()
	return runReported(t, nil, c, args...)
}

func runReported(t *testing.T, rpt *config.Report, c *cli.Command, args ...string) error {
	t.Helper()
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	env.Cfg, env.Log, env.Rpt = cfg, meitest.Logger(t), rpt
	t.Cleanup(func() { _ = env.CloseJournal() })
	return c.Run(ctx, append([]string{c.Name}, args...))
}

func fixCommand() *cli.Command {
	return &cli.Command{
		Name:   "fix",
		Action: Fix,
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "dry-run"}},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Action: Check,
		Flags:  []cli.Flag{&cli.BoolFlag{Name: "strict"}},
	}
}

func TestCheckCommand(t *testing.T) {
	page := writePage(t, t.TempDir(), "folio-1.mei", meitest.PageMEI)

	if err := runCommand(t, checkCommand(), page); err != nil {
		t.Errorf("check error = %v", err)
	}
	if err := runCommand(t, checkCommand(), "--strict", page); !errors.Is(err, ErrFindings) {
		t.Errorf("strict check error = %v, want ErrFindings", err)
	}
	if err := runCommand(t, checkCommand()); err == nil {
		t.Error("check without source must fail")
	}
}

func TestFixer(t *testing.T) {
	j, err := journal.Open("", meitest.Logger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	f := &fixer{cfg: &config.EditorConfig{NotifySuccess: true}, rec: j, log: meitest.Logger(t)}
	fixed, notes, err := f.fix(context.Background(), "folio-1.mei", meitest.PageMEI, defaultIntents(t))
	if err != nil {
		t.Fatalf("fix() error = %v (%+v)", err, notes)
	}

	doc, err := mei.ParseString(fixed, meitest.Logger(t))
	if err != nil {
		t.Fatalf("fixed page does not parse: %v", err)
	}
	for _, id := range []string{"n7", "sy7", "nc7", "dl1"} {
		if doc.ByID(id) != nil {
			t.Errorf("%s is still present", id)
		}
	}
	if v, ok := doc.ByID("nc6").Attr("ligated"); ok {
		t.Errorf("nc6 ligated = %q, want removed", v)
	}

	last := notes[len(notes)-1]
	if last.Level != editor.LevelWarning || last.Message != "No invalid syllables found" {
		t.Errorf("last notification = %+v", last)
	}
	if hasErrors(notes) {
		t.Errorf("unexpected error notifications: %+v", notes)
	}

	entries, err := j.Entries(context.Background(), "folio-1.mei")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("journal has %d entries, want 4", len(entries))
	}
}

func TestPlan(t *testing.T) {
	var out bytes.Buffer
	if err := plan(meitest.PageMEI, defaultIntents(t), &out, meitest.Logger(t)); err != nil {
		t.Fatalf("plan() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("plan() printed %d chains, want 4:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "removeEmptyNeumes\t") || !strings.Contains(lines[0], `"n7"`) {
		t.Errorf("first chain = %s", lines[0])
	}
}

func TestFixCommand(t *testing.T) {
	dir := t.TempDir()
	page := writePage(t, dir, "folio-1.mei", meitest.PageMEI)
	dst := filepath.Join(dir, "fixed.mei")

	c := fixCommand()
	if err := runCommand(t, c, page, dst); err != nil {
		t.Fatalf("fix error = %v", err)
	}
	doc, err := mei.ParseString(readFile(t, dst), meitest.Logger(t))
	if err != nil {
		t.Fatalf("destination does not parse: %v", err)
	}
	if doc.ByID("sy7") != nil {
		t.Error("empty syllable was not removed")
	}

	out := t.TempDir()
	if err := runCommand(t, c, page, out); err != nil {
		t.Fatalf("fix into directory error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "folio-1.mei")); err != nil {
		t.Errorf("fixed page not written into directory: %v", err)
	}

	writePage(t, dir, "folio-2.mei", meitest.PageMEI)
	if err := runCommand(t, c, dir, dst); !errors.Is(err, ErrSinglePage) {
		t.Errorf("fix of directory error = %v, want ErrSinglePage", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCommandsStoreSource(t *testing.T) {
	tests := []struct {
		name string
		c    *cli.Command
		dst  bool
	}{
		{"check", checkCommand(), false},
		{"fix", fixCommand(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			page := writePage(t, dir, "folio-1.mei", meitest.PageMEI)
			args := []string{page}
			if tt.dst {
				args = append(args, filepath.Join(dir, "fixed.mei"))
			}

			dest := filepath.Join(t.TempDir(), "report.zip")
			rpt, err := (&config.ReporterConfig{Destination: dest}).Prepare()
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			if err := runReported(t, rpt, tt.c, args...); err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}
			// report must keep the page as it was when command ran
			writePage(t, dir, "folio-1.mei", "<mei/>")
			if err := rpt.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			zr, err := zip.OpenReader(dest)
			if err != nil {
				t.Fatalf("report is not readable: %v", err)
			}
			defer zr.Close()
			f, err := zr.Open("source")
			if err != nil {
				t.Fatalf("source is missing from report: %v", err)
			}
			defer f.Close()
			var got bytes.Buffer
			if _, err := got.ReadFrom(f); err != nil {
				t.Fatal(err)
			}
			if got.String() != meitest.PageMEI {
				t.Errorf("stored source = %.40q..., want original page", got.String())
			}
		})
	}
}
