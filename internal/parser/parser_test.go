package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/enrondata/maildir-etl/internal/core"
)

const sampleMessage = `Message-ID: <12345.1075855378110.JavaMail.evans@thyme>
Date: Mon, 2 Oct 2000 10:30:00 -0700 (PDT)
From: alice.smith@enron.com
To: bob.jones@enron.com, carol.white@enron.com
Subject: Q3 gas nominations
Mime-Version: 1.0
X-From: Alice Smith
X-To: Bob Jones, Carol White
X-Folder: \Alice_Smith_Dec2000\Notes Folders\Sent
X-Origin: Smith-A
X-FileName: asmith.nsf

Please review the attached nominations before Friday.
`

func TestParse_HeadersAndBody(t *testing.T) {
	pm, err := Parse(sampleMessage)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if pm.Status != core.StatusOK {
		t.Fatalf("Status = %v, want StatusOK", pm.Status)
	}
	if got := pm.Headers.Get("From"); got != "alice.smith@enron.com" {
		t.Errorf("From = %q", got)
	}
	if got := pm.Headers.Get("SUBJECT"); got != "Q3 gas nominations" {
		t.Errorf("case-insensitive Subject lookup = %q", got)
	}
	if !strings.Contains(pm.Body, "attached nominations") {
		t.Errorf("body not split at blank line: %q", pm.Body)
	}
	if strings.Contains(pm.Body, "X-FileName") {
		t.Errorf("header leaked into body: %q", pm.Body)
	}
}

func TestParse_FoldedHeader(t *testing.T) {
	raw := "To: bob.jones@enron.com,\n\tcarol.white@enron.com\nDate: Mon, 2 Oct 2000 10:30:00 -0700\n\nbody"
	pm, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := "bob.jones@enron.com, carol.white@enron.com"
	if got := pm.Headers.Get(core.HeaderTo); got != want {
		t.Errorf("folded To = %q, want %q", got, want)
	}
}

func TestParse_NoHeaderBlock(t *testing.T) {
	_, err := Parse("just some text\nwith no headers at all\n")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("error = %v, want ErrMalformed", err)
	}
	if !errors.Is(err, ErrNoHeaderBlock) {
		t.Errorf("error = %v, want ErrNoHeaderBlock", err)
	}
}

func TestParseMessage_SenderFallsBackToXFrom(t *testing.T) {
	raw := "Date: Mon, 2 Oct 2000 10:30:00 -0700\nX-From: Alice Smith\nSubject: hi\n\nbody"
	pm, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if got := Sender(pm); got != "Alice Smith" {
		t.Errorf("Sender = %q, want X-From fallback", got)
	}
}

func TestParseMessage_BadDate(t *testing.T) {
	raw := "From: alice.smith@enron.com\nDate: not a date at all\n\nbody"
	pm, err := ParseMessage(raw)
	if !errors.Is(err, ErrBadDate) {
		t.Fatalf("error = %v, want ErrBadDate", err)
	}
	if pm.Status != core.StatusMalformed {
		t.Errorf("Status = %v, want StatusMalformed", pm.Status)
	}
}

func TestRecipients_MergesToAndCc(t *testing.T) {
	raw := "From: a@enron.com\nDate: Mon, 2 Oct 2000 10:30:00 -0700\n" +
		"To: bob.jones@enron.com\nCc: carol.white@enron.com, bob.jones@enron.com\n\nbody"
	pm, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	got := Recipients(pm)
	if len(got) != 2 {
		t.Fatalf("Recipients = %v, want 2 deduplicated entries", got)
	}
	if got[0] != "bob.jones@enron.com" || got[1] != "carol.white@enron.com" {
		t.Errorf("Recipients = %v", got)
	}
}

func TestCanonicalize_StripsVolatileHeaders(t *testing.T) {
	canon := Canonicalize(sampleMessage)
	for _, gone := range []string{"Message-ID:", "X-Folder:", "X-Origin:", "X-FileName:"} {
		if strings.Contains(canon, gone) {
			t.Errorf("Canonicalize left %s in place", gone)
		}
	}
	if !strings.Contains(canon, "From: alice.smith@enron.com") {
		t.Errorf("Canonicalize removed a stable header")
	}
}
