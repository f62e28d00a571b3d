package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const savedPage = `<!DOCTYPE html><html><head><title>Bronze axe</title></head><body>
<h1 id="firstHeading">Bronze axe</h1>
<table class="infobox"><tr><th><a href="/w/Members" title="Members">Members</a></th><td>No</td></tr></table>
</body></html>`

func newCommand(in string) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	return cmd, &out
}

func TestAnnotateFromStdin(t *testing.T) {
	logger = zap.NewNop()
	annotateOpts.out, annotateOpts.db, annotateOpts.visitor = "", "", ""
	annotateOpts.set = []string{"icon-position=after"}
	t.Cleanup(func() { annotateOpts.set = nil })

	cmd, out := newCommand(savedPage)
	if err := runAnnotate(cmd, nil); err != nil {
		t.Fatalf("runAnnotate: %v", err)
	}
	if !strings.Contains(out.String(), `class="F2P-icon after"`) {
		t.Fatalf("icon missing:\n%s", out.String())
	}
}

func TestAnnotateUsesStoredPreferences(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	db := filepath.Join(dir, "prefs.db")
	src := filepath.Join(dir, "page.html")
	dst := filepath.Join(dir, "out.html")
	if err := os.WriteFile(src, []byte(savedPage), 0o644); err != nil {
		t.Fatal(err)
	}

	_, release, err := openStore(db, "visitor-1", []string{"icon-enabled=false"})
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	release()

	annotateOpts.out, annotateOpts.db, annotateOpts.visitor, annotateOpts.set = dst, db, "visitor-1", nil
	t.Cleanup(func() { annotateOpts.out, annotateOpts.db, annotateOpts.visitor = "", "", "" })
	cmd, _ := newCommand("")
	if err := runAnnotate(cmd, []string{src}); err != nil {
		t.Fatalf("runAnnotate: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(got), "F2P-icon") {
		t.Fatal("stored icon-enabled=false was ignored")
	}
}

func TestAnnotateRejectsBadOverride(t *testing.T) {
	logger = zap.NewNop()
	for _, kv := range []string{"icon-position", "icon-position=sideways"} {
		if _, _, err := openStore("", "", []string{kv}); err == nil {
			t.Fatalf("override %q accepted", kv)
		}
	}
}

func TestInspectFile(t *testing.T) {
	logger = zap.NewNop()
	inspectOpts.set = nil
	src := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(src, []byte(savedPage), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd, out := newCommand("")
	if err := runInspect(cmd, []string{src}); err != nil {
		t.Fatalf("runInspect: %v", err)
	}
	for _, want := range []string{"class\tf2p\n", "heading\ttrue\n", "plan\tinsert-icon F2P/before\n", "plan\tinsert-popup\n"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestGenerateWritesStylesheets(t *testing.T) {
	logger = zap.NewNop()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"query":{"categorymembers":[{"title":%q}]}}`, "Page of "+r.URL.Query().Get("cmtitle"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "categories.yaml")
	yaml := fmt.Sprintf(`wiki_url: %s
groups:
  - name: members
    css_filename: members.css
    link_color:
      key: members-color
      value: {light: "#ae2a5b", dark: "#d3a1a1", browntown: "#b5718d"}
    categories: [Members' items]
`, srv.URL)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	generateOpts.config = cfgPath
	generateOpts.out = filepath.Join(dir, "out")
	generateOpts.concurrency = 1
	generateOpts.timeout = 0
	t.Cleanup(func() { generateOpts.config = "" })

	cmd, out := newCommand("")
	if err := runGenerate(cmd, nil); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	if !strings.Contains(out.String(), "members.css") || !strings.Contains(out.String(), "all.css") {
		t.Fatalf("summary = %q", out.String())
	}
	css, err := os.ReadFile(filepath.Join(dir, "out", "all.css"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(css), "--members-color") {
		t.Fatalf("all.css missing link color:\n%s", css)
	}
}

func TestInspectFlagsAreSeparate(t *testing.T) {
	logger = zap.NewNop()
	src := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(src, []byte(savedPage), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := inspectCmd.Flags().Set("set", "icon-position=after"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inspectOpts.set = nil })
	if len(annotateOpts.set) != 0 {
		t.Fatalf("inspect --set leaked into annotate: %v", annotateOpts.set)
	}

	annotateOpts.set = []string{"icon-enabled=false"}
	t.Cleanup(func() { annotateOpts.set = nil })
	cmd, out := newCommand("")
	if err := runInspect(cmd, []string{src}); err != nil {
		t.Fatalf("runInspect: %v", err)
	}
	if !strings.Contains(out.String(), "plan\tinsert-icon F2P/after\n") {
		t.Fatalf("inspect ignored its own --set:\n%s", out.String())
	}
}
