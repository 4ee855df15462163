package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const chartCSV = `date,rank,song,artist,peak-rank,weeks-on-board,genre
2000-04-01,1,Breathe,Faith Hill,1,53,country
2000-04-01,2,Amazed,Lonestar,1,55,country
2000-04-08,1,Breathe,Faith Hill,1,54,country
2000-04-08,5,Bye Bye Bye,*NSYNC,4,23,
`

// writeConfig points every path at a temp dir and turns the remote sources
// off so no command reaches the network.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := `database:
  path: ` + filepath.Join(dir, "muindb.db") + `
logging:
  level: error
encryption:
  key_file: ` + filepath.Join(dir, "muindb.key") + `
sources:
  spotify: {enabled: false}
  lastfm: {enabled: false}
  chartmetric: {enabled: false}
  catalog: {enabled: true}
cache:
  backend: memory
batch:
  checkpoint_path: ` + filepath.Join(dir, "checkpoint.json") + `
  backup_dir: ` + filepath.Join(dir, "backups") + `
subgenre:
  models_dir: ` + filepath.Join(dir, "models") + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestImportAndAnalyze(t *testing.T) {
	cfg := writeConfig(t)
	csvPath := filepath.Join(t.TempDir(), "chart.csv")
	if err := os.WriteFile(csvPath, []byte(chartCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "--config", cfg, "import", csvPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 4 rows: 3 songs") {
		t.Errorf("import output = %q", out)
	}

	out, err = execute(t, "", "--config", cfg, "analyze")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "songs: 3") || !strings.Contains(out, "country") {
		t.Errorf("analyze output = %q", out)
	}
}

func TestClassifyFromCatalog(t *testing.T) {
	cfg := writeConfig(t)
	csvPath := filepath.Join(t.TempDir(), "chart.csv")
	if err := os.WriteFile(csvPath, []byte(chartCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "--config", cfg, "import", csvPath); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := execute(t, "", "--config", cfg, "classify", "Faith Hill", "--year", "2000")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !strings.Contains(out, `"primary_genre": "country"`) {
		t.Errorf("classify output = %s", out)
	}
}

func TestBatchRun(t *testing.T) {
	cfg := writeConfig(t)
	csvPath := filepath.Join(t.TempDir(), "chart.csv")
	if err := os.WriteFile(csvPath, []byte(chartCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "--config", cfg, "import", csvPath); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := execute(t, "", "--config", cfg, "batch", "--year", "2000")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if !strings.Contains(out, "completed: 3/3 subjects") {
		t.Errorf("batch output = %q", out)
	}
}

func TestKeys(t *testing.T) {
	cfg := writeConfig(t)

	if _, err := execute(t, "id-123\nsecret-456\n", "--config", cfg, "keys", "set", "spotify"); err != nil {
		t.Fatalf("keys set: %v", err)
	}
	out, err := execute(t, "", "--config", cfg, "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	if !strings.Contains(out, "client_id,client_secret") {
		t.Errorf("keys list = %q", out)
	}
	if strings.Contains(out, "secret-456") {
		t.Error("keys list printed a secret")
	}

	if _, err := execute(t, "", "--config", cfg, "keys", "delete", "spotify"); err != nil {
		t.Fatalf("keys delete: %v", err)
	}
	out, err = execute(t, "", "--config", cfg, "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	if strings.Contains(out, "client_id") {
		t.Errorf("credentials survived delete: %q", out)
	}

	if _, err := execute(t, "", "--config", cfg, "keys", "set", "myspace"); err == nil {
		t.Error("keys set accepted an unknown source")
	}
}
