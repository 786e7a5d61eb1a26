package identity

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
	"github.com/enrondata/maildir-etl/internal/parser"
)

type Options struct {
	// ManualTable maps a normalized raw identity string to a canonical
	// person id, curated by hand from a previous run's diagnostics. A
	// value of core.SentinelID marks a string as confirmed unknown.
	ManualTable map[string]int

	// InternalDomains are the corpus-internal mail domains used for
	// name-based alias generation. Defaults to DefaultInternalDomains.
	InternalDomains []string
}

type person struct {
	id        int
	parts     nameParts
	aliases   map[string]struct{}
	generated map[string]struct{}
}

// Resolver maps every raw sender/recipient string in the corpus to a
// canonical person id, or to the sentinel. It requires the complete,
// ordered set of canonical messages: resolution is a single global pass
// and id assignment is deterministic for a fixed input ordering.
type Resolver struct {
	logger  *zap.Logger
	domains *DomainSet
	manual  map[string]int

	nextID  int
	usedIDs map[int]struct{}

	persons     map[int]*person
	personOrder []int
	aliasToID   map[string]int
	nameIndex   map[string]int

	methods  map[string]core.ResolutionMethod
	rawOrder []string

	groupIDs  map[string]int
	groupList []core.RecipientGroup

	unresolved []core.UnresolvedIdentityRecord
	frozen     bool
}

func NewResolver(opts Options, logger *zap.Logger) *Resolver {
	manual := make(map[string]int, len(opts.ManualTable))
	for raw, id := range opts.ManualTable {
		manual[normalize(raw)] = id
	}
	return &Resolver{
		logger:    logger,
		domains:   NewDomainSet(opts.InternalDomains, logger),
		manual:    manual,
		usedIDs:   make(map[int]struct{}),
		persons:   make(map[int]*person),
		aliasToID: make(map[string]int),
		nameIndex: make(map[string]int),
		methods:   make(map[string]core.ResolutionMethod),
		groupIDs:  make(map[string]int),
	}
}

// ResolveAll runs the resolution passes over all canonical messages and
// fills in SenderID and RecipientIDs on each record. A string resolved by
// an earlier pass is never reconsidered by a later one. Must be called
// exactly once, after every message exists.
func (r *Resolver) ResolveAll(msgs []*core.CanonicalMessage) {
	if r.frozen {
		panic("identity: ResolveAll called on a frozen resolver")
	}

	norms := r.collect(msgs)

	for _, norm := range norms {
		if isEmailForm(norm) {
			r.resolveExactEmail(norm)
		}
	}
	for _, norm := range norms {
		if _, done := r.methods[norm]; done {
			continue
		}
		r.resolveNameTokens(norm)
	}
	for _, norm := range norms {
		if _, done := r.methods[norm]; done {
			continue
		}
		r.resolveManual(norm)
	}
	for _, norm := range norms {
		if _, done := r.methods[norm]; done {
			continue
		}
		r.methods[norm] = core.MethodUnresolved
	}

	for _, msg := range msgs {
		r.annotate(msg)
	}

	r.frozen = true
	r.logger.Info("identity resolution complete",
		zap.Int("persons", len(r.persons)),
		zap.Int("raw_strings", len(norms)),
		zap.Int("unresolved", len(r.unresolved)))
}

// collect gathers the distinct normalized identity strings in message
// order, which fixes the id assignment order.
func (r *Resolver) collect(msgs []*core.CanonicalMessage) []string {
	var norms []string
	seen := make(map[string]struct{})
	add := func(norm string) {
		if norm == "" {
			return
		}
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		norms = append(norms, norm)
	}
	for _, msg := range msgs {
		add(senderNorm(msg))
		for _, rec := range msg.RawRecipients {
			add(normalize(rec))
		}
	}
	r.rawOrder = norms
	return norms
}

// resolveExactEmail is the first pass: case-insensitive, trimmed email
// match. First sight of an unknown address creates the identity, seeded
// with the generated alias variants when the address decomposes to a name.
func (r *Resolver) resolveExactEmail(norm string) {
	if id, ok := r.aliasToID[norm]; ok {
		r.record(norm, id, core.MethodExactEmail)
		return
	}
	parts, _ := parseAlias(norm, r.domains)
	id := r.createPerson(parts, norm)
	r.record(norm, id, core.MethodExactEmail)
}

// resolveNameTokens is the second pass: a display-name form matches a
// known identity by its name tokens. It never creates identities; a name
// nobody has sent mail under stays for the later passes. Aliases of any
// length are acceptable, including a single character.
func (r *Resolver) resolveNameTokens(norm string) {
	parts, ok := parseAlias(norm, r.domains)
	if !ok {
		return
	}
	if id, ok := r.nameIndex[parts.key()]; ok {
		r.addAlias(id, norm)
		r.record(norm, id, core.MethodNameMatch)
	}
}

// resolveManual is the third pass: the curated table for cases the
// automatic passes cannot disambiguate (shared last names, nicknames).
func (r *Resolver) resolveManual(norm string) {
	id, ok := r.manual[norm]
	if !ok {
		return
	}
	if id != core.SentinelID {
		if _, exists := r.persons[id]; !exists {
			r.adoptID(id)
		}
		r.addAlias(id, norm)
	}
	r.record(norm, id, core.MethodManualTable)
}

// annotate fills the resolved ids on one message and records diagnostics
// for a sender that ended up at the sentinel without curation.
func (r *Resolver) annotate(msg *core.CanonicalMessage) {
	norm := senderNorm(msg)
	msg.SenderID = r.idOf(norm)
	if msg.SenderID == core.SentinelID && r.methods[norm] == core.MethodUnresolved {
		r.unresolved = append(r.unresolved, core.UnresolvedIdentityRecord{
			Fingerprint: msg.Fingerprint,
			RawIdentity: msg.RawSender,
		})
	}

	var ids []int
	seen := make(map[int]struct{})
	for _, rec := range msg.RawRecipients {
		id := r.idOf(normalize(rec))
		if id == core.SentinelID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	msg.RecipientIDs = ids
	msg.GroupID = r.groupID(ids)
}

// groupID returns the stable id for a resolved recipient set: the same set
// maps to the same id on every message, first sight allocates the next one.
// An empty set has no group.
func (r *Resolver) groupID(ids []int) int {
	if len(ids) == 0 {
		return core.SentinelID
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	key := strings.Join(parts, ",")
	if id, ok := r.groupIDs[key]; ok {
		return id
	}
	id := len(r.groupList)
	r.groupIDs[key] = id
	r.groupList = append(r.groupList, core.RecipientGroup{ID: id, PersonIDs: ids})
	return id
}

func (r *Resolver) idOf(norm string) int {
	if norm == "" {
		return core.SentinelID
	}
	if id, ok := r.aliasToID[norm]; ok {
		return id
	}
	if id, ok := r.manual[norm]; ok && r.methods[norm] == core.MethodManualTable {
		return id
	}
	return core.SentinelID
}

func (r *Resolver) record(norm string, id int, method core.ResolutionMethod) {
	r.methods[norm] = method
	if id != core.SentinelID {
		r.aliasToID[norm] = id
	}
}

func (r *Resolver) createPerson(parts nameParts, seedAlias string) int {
	id := r.allocID()
	p := &person{
		id:        id,
		parts:     parts,
		aliases:   map[string]struct{}{seedAlias: {}},
		generated: make(map[string]struct{}),
	}
	r.persons[id] = p
	r.personOrder = append(r.personOrder, id)
	r.aliasToID[seedAlias] = id

	for _, alias := range generateAliases(parts, r.domains.Primary()) {
		p.generated[alias] = struct{}{}
		if _, taken := r.aliasToID[alias]; !taken {
			r.aliasToID[alias] = id
		}
	}
	if parts.First != "" && parts.Last != "" {
		if _, taken := r.nameIndex[parts.key()]; !taken {
			r.nameIndex[parts.key()] = id
		}
	}
	return id
}

// adoptID registers a person under an id dictated by the manual table.
func (r *Resolver) adoptID(id int) {
	r.usedIDs[id] = struct{}{}
	r.persons[id] = &person{
		id:        id,
		aliases:   make(map[string]struct{}),
		generated: make(map[string]struct{}),
	}
	r.personOrder = append(r.personOrder, id)
}

func (r *Resolver) addAlias(id int, norm string) {
	p, ok := r.persons[id]
	if !ok {
		return
	}
	p.aliases[norm] = struct{}{}
	if _, taken := r.aliasToID[norm]; !taken {
		r.aliasToID[norm] = id
	}
}

func (r *Resolver) allocID() int {
	for {
		id := r.nextID
		r.nextID++
		if _, taken := r.usedIDs[id]; !taken {
			r.usedIDs[id] = struct{}{}
			return id
		}
	}
}

// UnresolvedCount reports how many sender occurrences hit the sentinel.
func (r *Resolver) UnresolvedCount() int {
	return len(r.unresolved)
}

// PersonCount reports the number of canonical identities.
func (r *Resolver) PersonCount() int {
	return len(r.persons)
}

// Resolution is the immutable result of a completed resolver pass. It is
// built once and handed by reference to the output stage; nothing mutates
// it afterwards.
type Resolution struct {
	Persons    []core.PersonIdentity
	Aliases    []core.AliasMapping
	Groups     []core.RecipientGroup
	Unresolved []core.UnresolvedIdentityRecord
}

// Snapshot freezes the resolver state into a Resolution. Panics if called
// before ResolveAll.
func (r *Resolver) Snapshot() *Resolution {
	if !r.frozen {
		panic("identity: Snapshot called before ResolveAll")
	}

	persons := make([]core.PersonIdentity, 0, len(r.personOrder))
	for _, id := range r.personOrder {
		p := r.persons[id]
		persons = append(persons, core.PersonIdentity{
			ID:               p.id,
			FirstName:        p.parts.First,
			LastName:         p.parts.Last,
			Initial:          p.parts.Initial,
			Aliases:          sortedKeys(p.aliases),
			GeneratedAliases: sortedKeys(p.generated),
		})
	}

	aliases := make([]core.AliasMapping, 0, len(r.rawOrder))
	for _, norm := range r.rawOrder {
		aliases = append(aliases, core.AliasMapping{
			Raw:      norm,
			PersonID: r.idOf(norm),
			Method:   r.methods[norm],
		})
	}

	return &Resolution{
		Persons:    persons,
		Aliases:    aliases,
		Groups:     r.groupList,
		Unresolved: r.unresolved,
	}
}

func senderNorm(msg *core.CanonicalMessage) string {
	if msg.RawSender == "" {
		return ""
	}
	return parser.FirstAddress(msg.RawSender)
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func isEmailForm(norm string) bool {
	return strings.Count(norm, "@") == 1 && !strings.ContainsAny(norm, " \t,<>")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
