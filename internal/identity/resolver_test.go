package identity

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
)

func msg(fp, sender string, recipients ...string) *core.CanonicalMessage {
	return &core.CanonicalMessage{
		Fingerprint:   fp,
		Date:          time.Date(2001, 1, 1, 12, 0, 0, 0, time.UTC),
		RawSender:     sender,
		RawRecipients: recipients,
	}
}

func TestResolveAll_ExactEmailConvergence(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com", "bob.jones@enron.com"),
		msg("fp2", "Alice Smith <alice.smith@enron.com>", "bob.jones@enron.com"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[0].SenderID != msgs[1].SenderID {
		t.Errorf("sender ids diverge: %d vs %d", msgs[0].SenderID, msgs[1].SenderID)
	}
	if msgs[0].SenderID == core.SentinelID {
		t.Error("sender resolved to sentinel")
	}
	// One person for alice, one for the recipient bob.
	if r.PersonCount() != 2 {
		t.Errorf("PersonCount() = %d, want 2", r.PersonCount())
	}
}

func TestResolveAll_GeneratedAliasVariants(t *testing.T) {
	// asmith@enron.com is a generated variant of alice.smith@enron.com.
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com"),
		msg("fp2", "asmith@enron.com"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[0].SenderID != msgs[1].SenderID {
		t.Errorf("alias variant got its own id: %d vs %d", msgs[0].SenderID, msgs[1].SenderID)
	}
}

func TestResolveAll_NameTokenPass(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com"),
		msg("fp2", "Smith, Alice"),
		msg("fp3", "Alice Smith"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[1].SenderID != msgs[0].SenderID {
		t.Errorf("'Last, First' form id = %d, want %d", msgs[1].SenderID, msgs[0].SenderID)
	}
	if msgs[2].SenderID != msgs[0].SenderID {
		t.Errorf("'First Last' form id = %d, want %d", msgs[2].SenderID, msgs[0].SenderID)
	}

	res := r.Snapshot()
	methods := make(map[string]core.ResolutionMethod)
	for _, a := range res.Aliases {
		methods[a.Raw] = a.Method
	}
	if methods["alice.smith@enron.com"] != core.MethodExactEmail {
		t.Errorf("email method = %v", methods["alice.smith@enron.com"])
	}
	if methods["smith, alice"] != core.MethodNameMatch {
		t.Errorf("name method = %v", methods["smith, alice"])
	}
}

func TestResolveAll_SingleCharacterAlias(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "k", "alice.smith@enron.com"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[0].SenderID != core.SentinelID {
		t.Errorf("single-char sender id = %d, want sentinel", msgs[0].SenderID)
	}
	res := r.Snapshot()
	if len(res.Unresolved) != 1 {
		t.Fatalf("unresolved records = %d, want 1", len(res.Unresolved))
	}
	if res.Unresolved[0].Fingerprint != "fp1" || res.Unresolved[0].RawIdentity != "k" {
		t.Errorf("diagnostic record = %+v", res.Unresolved[0])
	}
}

func TestResolveAll_ManualTable(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com"),
		msg("fp2", "Smitty"),
	}
	r := NewResolver(Options{ManualTable: map[string]int{"smitty": 0}}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[1].SenderID != msgs[0].SenderID {
		t.Errorf("manual mapping id = %d, want %d", msgs[1].SenderID, msgs[0].SenderID)
	}
	if r.UnresolvedCount() != 0 {
		t.Errorf("UnresolvedCount = %d, want 0", r.UnresolvedCount())
	}
}

func TestResolveAll_ManualSentinelSuppressesDiagnostic(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "mailing-list-noise"),
	}
	r := NewResolver(Options{ManualTable: map[string]int{"mailing-list-noise": core.SentinelID}}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[0].SenderID != core.SentinelID {
		t.Errorf("curated sentinel id = %d, want -1", msgs[0].SenderID)
	}
	if r.UnresolvedCount() != 0 {
		t.Errorf("curated sentinel still produced %d diagnostics", r.UnresolvedCount())
	}
}

func TestResolveAll_DeterministicIDs(t *testing.T) {
	build := func() map[string]int {
		msgs := []*core.CanonicalMessage{
			msg("fp1", "alice.smith@enron.com", "bob.jones@enron.com", "carol.white@enron.com"),
			msg("fp2", "bob.jones@enron.com", "alice.smith@enron.com"),
		}
		r := NewResolver(Options{}, zap.NewNop())
		r.ResolveAll(msgs)
		out := make(map[string]int)
		for _, a := range r.Snapshot().Aliases {
			out[a.Raw] = a.PersonID
		}
		return out
	}
	a, b := build(), build()
	for raw, id := range a {
		if b[raw] != id {
			t.Errorf("id for %q differs across runs: %d vs %d", raw, id, b[raw])
		}
	}
}

func TestResolveAll_RecipientIDsExcludeSentinel(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com", "bob.jones@enron.com", "???", "bob.jones@enron.com"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if len(msgs[0].RecipientIDs) != 1 {
		t.Fatalf("RecipientIDs = %v, want one resolved, deduplicated id", msgs[0].RecipientIDs)
	}
}

func TestResolveAll_RecipientGroupIDs(t *testing.T) {
	msgs := []*core.CanonicalMessage{
		msg("fp1", "alice.smith@enron.com", "bob.jones@enron.com", "carol.white@enron.com"),
		msg("fp2", "dan.brown@enron.com", "carol.white@enron.com", "bob.jones@enron.com"),
		msg("fp3", "alice.smith@enron.com", "bob.jones@enron.com"),
		msg("fp4", "alice.smith@enron.com"),
	}
	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)

	if msgs[0].GroupID != msgs[1].GroupID {
		t.Errorf("same recipient set got ids %d and %d", msgs[0].GroupID, msgs[1].GroupID)
	}
	if msgs[0].GroupID == msgs[2].GroupID {
		t.Errorf("distinct recipient sets share id %d", msgs[0].GroupID)
	}
	if msgs[3].GroupID != core.SentinelID {
		t.Errorf("empty recipient set id = %d, want sentinel", msgs[3].GroupID)
	}

	groups := r.Snapshot().Groups
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	for i, g := range groups {
		if g.ID != i {
			t.Errorf("group %d has id %d", i, g.ID)
		}
		if len(g.PersonIDs) == 0 {
			t.Errorf("group %d is empty", g.ID)
		}
	}
}

func TestResolveAll_UnresolvedSenderFractionBound(t *testing.T) {
	// A corpus of well-formed internal addresses should leave only a
	// small residue of unresolvable senders.
	var msgs []*core.CanonicalMessage
	for i := 0; i < 98; i++ {
		sender := fmt.Sprintf("first%02d.last%02d@enron.com", i, i)
		msgs = append(msgs, msg(fmt.Sprintf("fp%03d", i), sender))
	}
	msgs = append(msgs, msg("fp098", "k"))
	msgs = append(msgs, msg("fp099", "???"))

	r := NewResolver(Options{}, zap.NewNop())
	r.ResolveAll(msgs)
	res := r.Snapshot()

	if len(res.Unresolved) != 2 {
		t.Fatalf("unresolved = %d, want exactly the two junk senders", len(res.Unresolved))
	}
	fraction := float64(len(res.Unresolved)) / float64(len(msgs))
	if fraction > 0.02 {
		t.Errorf("unresolved fraction = %.3f, want <= 0.02", fraction)
	}
}

func TestParseAlias(t *testing.T) {
	domains := NewDomainSet(nil, zap.NewNop())
	tests := []struct {
		alias string
		want  nameParts
		ok    bool
	}{
		{"alice.smith@enron.com", nameParts{First: "alice", Last: "smith"}, true},
		{"alice.m.smith@enron.com", nameParts{First: "alice", Initial: "m", Last: "smith"}, true},
		{"someone@example.org", nameParts{}, false},
		{"Smith, Alice", nameParts{First: "alice", Last: "smith"}, true},
		{"Smith, Alice M.", nameParts{First: "alice", Initial: "m", Last: "smith"}, true},
		{"Alice Smith", nameParts{First: "alice", Last: "smith"}, true},
		{"k", nameParts{}, false},
		{"", nameParts{}, false},
	}
	for _, tt := range tests {
		got, ok := parseAlias(tt.alias, domains)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseAlias(%q) = %+v, %v; want %+v, %v", tt.alias, got, ok, tt.want, tt.ok)
		}
	}
}
