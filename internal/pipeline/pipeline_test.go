package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/adapters/store"
	"github.com/enrondata/maildir-etl/internal/config"
	"github.com/enrondata/maildir-etl/internal/identity"
	"github.com/enrondata/maildir-etl/internal/thread"
)

const sampleEmail = `Message-ID: <123456.JavaMail.evans@thyme>
Date: Mon, 14 May 2001 16:39:00 -0700 (PDT)
From: alice.smith@enron.com
To: bob.jones@enron.com
Subject: meeting
X-From: Smith, Alice
X-To: Jones, Bob

Let's meet tomorrow.
`

const threadedEmail = `Message-ID: <654321.JavaMail.evans@thyme>
Date: Tue, 15 May 2001 09:00:00 -0700 (PDT)
From: bob.jones@enron.com
To: alice.smith@enron.com
Subject: RE: meeting

Works for me.

-----Original Message-----
From: Smith, Alice
Sent: Monday, May 14, 2001 4:39 PM
To: Jones, Bob
Subject: meeting

Let's meet tomorrow.
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestPipeline(t *testing.T, inputDir string, exclude ...string) (*Pipeline, *store.MemoryStore) {
	t.Helper()
	v := config.NewEmptyViper()
	v.Set("input.dir", inputDir)
	v.Set("pipeline.workers", 2)
	if len(exclude) > 0 {
		v.Set("input.exclude", exclude)
	}
	cfg := config.NewFromViper(v)
	logger := zap.NewNop()
	splitter := thread.New(thread.Options{}, logger)
	resolver := identity.NewResolver(identity.Options{}, logger)
	ms := store.NewMemoryStore(logger)
	return New(cfg, logger, splitter, resolver, ms), ms
}

func TestRun_DeduplicatesAcrossFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "smith-a/sent/1.", sampleEmail)
	writeFile(t, root, "jones-b/inbox/7.", sampleEmail)

	p, ms := newTestPipeline(t, root)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", stats.FilesScanned)
	}
	if stats.Messages != 1 || stats.Duplicates != 1 {
		t.Errorf("Messages = %d, Duplicates = %d; want 1, 1", stats.Messages, stats.Duplicates)
	}

	msgs := ms.Messages()
	if len(msgs) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(msgs))
	}
	if len(msgs[0].Folders) != 2 {
		t.Errorf("folder memberships = %v, want both source folders", msgs[0].Folders)
	}
	if msgs[0].SenderID < 0 {
		t.Errorf("sender unresolved: id = %d", msgs[0].SenderID)
	}
	if len(ms.Persons()) == 0 {
		t.Error("no persons emitted")
	}
	// One recipient set {bob}, so one emitted group carried on the message.
	if len(ms.Groups()) != 1 {
		t.Fatalf("groups = %d, want 1", len(ms.Groups()))
	}
	if msgs[0].GroupID != ms.Groups()[0].ID {
		t.Errorf("message group id = %d, want %d", msgs[0].GroupID, ms.Groups()[0].ID)
	}
}

func TestRun_ExcludedFilesAreSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "smith-a/sent/1.", sampleEmail)
	writeFile(t, root, "smith-a/sent/2.", threadedEmail)

	p, ms := newTestPipeline(t, root, "smith-a/sent/2.")
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.FilesExcluded != 1 {
		t.Errorf("FilesExcluded = %d, want 1", stats.FilesExcluded)
	}
	if stats.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", stats.FilesScanned)
	}
	if stats.Messages != 1 || len(ms.Messages()) != 1 {
		t.Errorf("Messages = %d (stored %d), want only the kept file's message",
			stats.Messages, len(ms.Messages()))
	}
}

func TestRun_MalformedFileDoesNotAbortRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "smith-a/sent/1.", sampleEmail)
	writeFile(t, root, "smith-a/sent/2.", "not an email at all\njust noise\n")

	p, ms := newTestPipeline(t, root)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", stats.FilesFailed)
	}
	if stats.Messages != 1 {
		t.Errorf("Messages = %d, want 1", stats.Messages)
	}
	errs := ms.ParseErrors()
	if len(errs) != 1 {
		t.Fatalf("parse errors = %d, want 1", len(errs))
	}
	if filepath.Base(errs[0].Path) != "2." {
		t.Errorf("parse error path = %s", errs[0].Path)
	}
}

func TestRun_SplitsEmbeddedThread(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "jones-b/inbox/1.", threadedEmail)

	p, ms := newTestPipeline(t, root)
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Messages != 2 {
		t.Fatalf("Messages = %d, want reply plus quoted original", stats.Messages)
	}
	var linked int
	for _, msg := range ms.Messages() {
		if msg.ParentFingerprint != "" {
			linked++
		}
	}
	if linked != 1 {
		t.Errorf("messages with a parent = %d, want 1", linked)
	}
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "smith-a/sent/1.", sampleEmail)
	writeFile(t, root, "jones-b/inbox/1.", threadedEmail)

	run := func() map[string]int {
		p, ms := newTestPipeline(t, root)
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		ids := make(map[string]int)
		for _, a := range ms.Aliases() {
			ids[a.Raw] = a.PersonID
		}
		return ids
	}

	first, second := run(), run()
	for raw, id := range first {
		if second[raw] != id {
			t.Errorf("id for %q differs across runs: %d vs %d", raw, id, second[raw])
		}
	}
}

func TestRun_MissingInputRootIsFatal(t *testing.T) {
	p, _ := newTestPipeline(t, filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing input root")
	}
}
