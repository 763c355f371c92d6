package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio/storage/memory"
)

func newTestCLI(t *testing.T) (*CLI, *bytes.Buffer, *memory.Backend) {
	t.Helper()
	store := memory.New(nil)
	svc, err := portfolio.New(portfolio.WithBlobStore(store))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return &CLI{Service: svc, Out: out}, out, store
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestImportAndList(t *testing.T) {
	cli, out, _ := newTestCLI(t)
	ctx := context.Background()

	code, err := cli.Run(ctx, "import", []string{"drawings", writeFile(t, "sketch one.png", "png"), "--title=Sketch"})
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out.String(), "sequence 1")

	out.Reset()
	code, err = cli.Run(ctx, "list", []string{"--json", "drawings"})
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)

	var listed struct {
		Items []portfolio.ContentRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed.Items, 1)
	assert.Equal(t, "Sketch", listed.Items[0].Title)
	assert.True(t, strings.HasSuffix(listed.Items[0].PrimaryKey, "/sketch_one.png"), listed.Items[0].PrimaryKey)
}

func TestUsageErrors(t *testing.T) {
	cli, _, _ := newTestCLI(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    []string
	}{
		{"unknown command", "frobnicate", nil},
		{"list without collection", "list", nil},
		{"unknown flag", "list", []string{"--color", "drawings"}},
		{"delete collection unconfirmed", "delete-collection", []string{"drawings"}},
		{"import without file", "import", []string{"drawings"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := cli.Run(ctx, tt.command, tt.args)
			assert.ErrorIs(t, err, errUsage)
			assert.Equal(t, exitUsage, code)
		})
	}

	code, err := cli.Run(ctx, "list", []string{"secrets"})
	assert.ErrorIs(t, err, portfolio.ErrUnknownCollection)
	assert.Equal(t, exitFailure, code)
}

func TestRenumberReorderDelete(t *testing.T) {
	cli, out, _ := newTestCLI(t)
	ctx := context.Background()

	for _, title := range []string{"Beta", "Alpha"} {
		_, err := cli.Run(ctx, "import", []string{"paintings", writeFile(t, title+".jpg", title), "--title=" + title})
		require.NoError(t, err)
	}

	_, err := cli.Run(ctx, "renumber", []string{"paintings", "--sort-by=title"})
	require.NoError(t, err)
	doc, err := cli.Service.ListItems(ctx, "paintings")
	require.NoError(t, err)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "Alpha", doc.Items[0].Title)
	alpha, beta := doc.Items[0].ID, doc.Items[1].ID

	_, err = cli.Run(ctx, "reorder", []string{"paintings", beta, alpha})
	require.NoError(t, err)
	doc, err = cli.Service.ListItems(ctx, "paintings")
	require.NoError(t, err)
	assert.Equal(t, beta, doc.Items[0].ID)
	assert.Equal(t, 1, *doc.Items[0].Sequence)

	out.Reset()
	_, err = cli.Run(ctx, "delete-item", []string{"paintings", beta})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "deleted 1 blobs")

	out.Reset()
	_, err = cli.Run(ctx, "delete-item", []string{"paintings", beta})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "is not in paintings")

	_, err = cli.Run(ctx, "delete-collection", []string{"paintings", "--yes"})
	require.NoError(t, err)
	doc, err = cli.Service.ListItems(ctx, "paintings")
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
	assert.True(t, doc.Version.IsAbsent())
}

func TestCheck(t *testing.T) {
	cli, out, store := newTestCLI(t)
	ctx := context.Background()

	_, err := cli.Run(ctx, "import", []string{"texts", writeFile(t, "essay.md", "# essay")})
	require.NoError(t, err)

	out.Reset()
	code, err := cli.Run(ctx, "check", []string{"texts"})
	require.NoError(t, err)
	assert.Equal(t, exitOK, code)

	doc, err := cli.Service.ListItems(ctx, "texts")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, doc.Items[0].PrimaryKey))
	require.NoError(t, store.Upload(ctx, "collections/texts/stray/notes.txt", strings.NewReader("x"), "text/plain"))
	_, err = store.Put(ctx, "collections/cv/metadata.json", []byte(`{"items":{}}`), portfolio.PutOptions{})
	require.NoError(t, err)

	out.Reset()
	code, err = cli.Run(ctx, "check", []string{"--json", "texts", "cv"})
	require.NoError(t, err)
	assert.Equal(t, exitProblems, code)

	var reports []CollectionReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, []string{doc.Items[0].PrimaryKey}, reports[0].Missing)
	assert.Equal(t, []string{"collections/texts/stray/notes.txt"}, reports[0].Orphaned)
	assert.Contains(t, reports[1].Error, "could not be decoded")
}

func TestPrintHelp(t *testing.T) {
	var out bytes.Buffer
	printHelp(&out)

	help := out.String()
	assert.True(t, strings.HasPrefix(help, "Portfolio Admin CLI\n"))
	assert.Contains(t, help, "delete-collection <collection> --yes")
	assert.Contains(t, help, "ENVIRONMENT VARIABLES:")
	assert.Contains(t, help, "PORTFOLIO_STORAGE")
}
