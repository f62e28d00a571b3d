package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"f2phelper/dom"
	"f2phelper/internal/engine"
	"f2phelper/internal/prefs"
)

var annotateOpts struct {
	out     string
	db      string
	visitor string
	set     []string
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [file]",
	Short: "Annotate a saved wiki page",
	Long: `Annotate runs one reconciliation over a saved page (or stdin) and writes
the annotated HTML. Preferences come from --db, optionally scoped to one
--visitor, and --set key=value overrides applied before the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnnotate,
}

var inspectOpts struct {
	set []string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <url|file>",
	Short: "Show how a page is classified and what would change",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	f := annotateCmd.Flags()
	f.StringVarP(&annotateOpts.out, "out", "o", "", "Output file (default: stdout)")
	f.StringVar(&annotateOpts.db, "db", "", "SQLite preference database")
	f.StringVar(&annotateOpts.visitor, "visitor", "", "Visitor id whose preferences to use")
	f.StringArrayVar(&annotateOpts.set, "set", nil, "Preference override key=value (repeatable)")

	inspectCmd.Flags().StringArrayVar(&inspectOpts.set, "set", nil, "Preference override key=value (repeatable)")
}

// openStore returns the preference store for the command and a release
// function for its backend.
func openStore(db, visitor string, overrides []string) (*prefs.Store, func(), error) {
	var (
		backend prefs.Backend
		release = func() {}
	)
	if db != "" {
		sqlite, err := prefs.OpenSQLite(db)
		if err != nil {
			return nil, nil, err
		}
		release = func() { sqlite.Close() }
		backend = sqlite
		if visitor != "" {
			backend = sqlite.Namespace(visitor)
		}
	} else {
		backend = prefs.NewMemory().Namespace(visitor)
	}
	store := prefs.NewStore(backend, prefs.WithLogger(logger))
	for _, kv := range overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			release()
			return nil, nil, fmt.Errorf("override %q: want key=value", kv)
		}
		if err := prefs.ApplyChange(store, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			release()
			return nil, nil, err
		}
	}
	return store, release, nil
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	store, release, err := openStore(annotateOpts.db, annotateOpts.visitor, annotateOpts.set)
	if err != nil {
		return err
	}
	defer release()

	out := cmd.OutOrStdout()
	var file *os.File
	if annotateOpts.out != "" {
		if file, err = os.Create(annotateOpts.out); err != nil {
			return err
		}
		out = file
	}
	w := bufio.NewWriter(out)
	stats, actions, err := engine.AnnotateHTML(in, w, store, engine.Options{Logger: logger})
	if err == nil {
		err = w.Flush()
	}
	if file != nil {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	logger.Info("Annotated page",
		zap.Stringer("class", stats.LastClass),
		zap.Int("actions", len(actions)))
	return nil
}

func readPage(target string) (*dom.Document, error) {
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		f, err := os.Open(target)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dom.Parse(f)
	}
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "f2phelper-inspect/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}
	return dom.Parse(resp.Body)
}

func runInspect(cmd *cobra.Command, args []string) error {
	doc, err := readPage(args[0])
	if err != nil {
		return err
	}
	store, release, err := openStore("", "", inspectOpts.set)
	if err != nil {
		return err
	}
	defer release()

	class := engine.Classify(doc)
	obs := engine.Observe(doc)
	plan := engine.Plan(obs, engine.Desire(class, prefs.Load(store)))
	printInspection(cmd.OutOrStdout(), class, obs, plan)
	return nil
}

func printInspection(w io.Writer, class engine.Classification, obs engine.ObservedState, plan []engine.Action) {
	fmt.Fprintf(w, "class\t%s\n", class)
	fmt.Fprintf(w, "heading\t%t\n", obs.Heading)
	fmt.Fprintf(w, "icons\t%d\n", len(obs.Icons))
	fmt.Fprintf(w, "menu\t%t\n", obs.MenuTemplate)
	for _, a := range plan {
		switch a.Kind {
		case engine.InsertIcon:
			fmt.Fprintf(w, "plan\t%s %s/%s\n", a.Kind, a.Icon.Type, a.Icon.Position)
		case engine.SetTitleStyle:
			fmt.Fprintf(w, "plan\t%s strike=%t upper=%t color=%q\n", a.Kind, a.Style.Strikethrough, a.Style.Uppercase, a.Style.Color)
		default:
			fmt.Fprintf(w, "plan\t%s\n", a.Kind)
		}
	}
}
