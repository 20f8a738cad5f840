package parser

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// knownRecords are the canonical record names this parser understands.
// Anything else resolves through the abbreviation rule or fails.
var knownRecords = []string{
	"ABBREVIATED",
	"AES",
	"AESINITIAL",
	"BIND",
	"COVARIANCE",
	"DATA",
	"DES",
	"ERROR",
	"ESTIMATION",
	"ETAS",
	"INFN",
	"INPUT",
	"MIX",
	"MODEL",
	"MSFI",
	"NONPARAMETRIC",
	"OMEGA",
	"PK",
	"PRED",
	"PRIOR",
	"PROBLEM",
	"SCATTERPLOT",
	"SIGMA",
	"SIMULATION",
	"SIZES",
	"SUBROUTINES",
	"TABLE",
	"THETA",
	"TOL",
	"WARNINGS",
}

// synonyms that are not plain prefixes of the canonical name.
var recordSynonyms = map[string]string{
	"SIMULATE":    "SIMULATION",
	"SIMULATIONS": "SIMULATION",
	"SUBROUTINE":  "SUBROUTINES",
	"ESTM":        "ESTIMATION",
	"ESTIMATE":    "ESTIMATION",
	"THETAS":      "THETA",
	"OMEGAS":      "OMEGA",
	"SIGMAS":      "SIGMA",
	"COVR":        "COVARIANCE",
}

// ResolveRecordName maps a record name as written (without the dollar) to
// its canonical name. Exact matches and listed synonyms win; otherwise a
// prefix of at least three characters must match exactly one known record.
func ResolveRecordName(name string) (string, error) {
	up := strings.ToUpper(name)
	if canon, ok := recordSynonyms[up]; ok {
		return canon, nil
	}
	for _, r := range knownRecords {
		if up == r {
			return r, nil
		}
	}
	if len(up) < 3 {
		return "", &UnknownRecordError{Name: name}
	}
	var matches []string
	for _, r := range knownRecords {
		if strings.HasPrefix(r, up) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return "", &UnknownRecordError{Name: name}
	case 1:
		return matches[0], nil
	}
	return "", &AmbiguousRecordError{Name: name, Matches: matches}
}

// Record is one $NAME block of a control stream. The raw text as read is
// preserved so unmodified records round-trip exactly.
type Record interface {
	// Name returns the canonical record name, e.g. ESTIMATION for $EST.
	Name() string
	// Raw returns the record text, regenerated if the record was modified.
	Raw() string
}

// base carries what every record shares.
type base struct {
	name string // canonical
	raw  string // original text, starting at the dollar
	line int    // 1-based line of the dollar in the stream
}

func (b *base) Name() string { return b.name }
func (b *base) Raw() string  { return b.raw }

// body returns the record text after the $NAME marker.
func (b *base) body() string {
	s := b.raw
	if len(s) > 0 && s[0] == '$' {
		s = s[1:]
	}
	i := 0
	for i < len(s) && !isSeparator(s[i]) {
		i++
	}
	return s[i:]
}

// lex tokenizes the record body.
func (b *base) lex() []token.Token {
	return Tokens(b.body(), b.line)
}

// RawRecord is a record kind kept verbatim.
type RawRecord struct {
	base
}

// ControlStream is a parsed control stream: an ordered list of records
// plus any text before the first record.
type ControlStream struct {
	Prelude string
	Records []Record
}

// Parse parses control stream text into records. Unknown or ambiguous
// record names and malformed record bodies are errors.
func Parse(text string) (*ControlStream, error) {
	cs := &ControlStream{}
	lines := strings.SplitAfter(text, "\n")

	var cur []string
	var curLine int
	flush := func() error {
		if cur == nil {
			return nil
		}
		raw := strings.Join(cur, "")
		rec, err := newRecord(raw, curLine)
		if err != nil {
			return err
		}
		cs.Records = append(cs.Records, rec)
		cur = nil
		return nil
	}

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "$") {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = []string{line}
			curLine = i + 1
			continue
		}
		if cur == nil {
			cs.Prelude += line
			continue
		}
		cur = append(cur, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(cs.Records) == 0 {
		return nil, fmt.Errorf("control stream contains no records")
	}
	return cs, nil
}

// newRecord resolves the record name and dispatches to the typed parser.
func newRecord(raw string, line int) (Record, error) {
	trimmed := strings.TrimLeft(raw, " \t")
	if !strings.HasPrefix(trimmed, "$") {
		return nil, &ParseError{Pos: token.Position{Line: line, Column: 1}, Message: "record must start with $"}
	}
	rest := trimmed[1:]
	end := 0
	for end < len(rest) && !isSeparator(rest[end]) {
		end++
	}
	canon, err := ResolveRecordName(rest[:end])
	if err != nil {
		return nil, err
	}
	b := base{name: canon, raw: raw, line: line}

	var rec Record
	switch canon {
	case "PROBLEM":
		rec = parseProblemRecord(b)
	case "DATA":
		rec, err = parseDataRecord(b)
	case "INPUT":
		rec, err = parseInputRecord(b)
	case "THETA":
		rec, err = parseThetaRecord(b)
	case "OMEGA", "SIGMA":
		rec, err = parseOmegaRecord(b)
	case "SUBROUTINES":
		rec, err = parseSubroutinesRecord(b)
	case "MODEL":
		rec, err = parseModelRecord(b)
	case "ESTIMATION":
		rec, err = parseEstimationRecord(b)
	case "COVARIANCE":
		rec = parseCovarianceRecord(b)
	case "SIMULATION":
		rec, err = parseSimulationRecord(b)
	case "TABLE":
		rec, err = parseTableRecord(b)
	case "PK", "ERROR", "PRED", "DES":
		rec = parseCodeRecord(b)
	default:
		rec = &RawRecord{base: b}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// String renders the whole stream. Unmodified records emit their original
// bytes.
func (cs *ControlStream) String() string {
	var b strings.Builder
	b.WriteString(cs.Prelude)
	for _, r := range cs.Records {
		b.WriteString(r.Raw())
	}
	return b.String()
}

// Get returns all records with the given canonical name.
func (cs *ControlStream) Get(name string) []Record {
	var out []Record
	for _, r := range cs.Records {
		if r.Name() == name {
			out = append(out, r)
		}
	}
	return out
}

// First returns the first record with the given canonical name.
func (cs *ControlStream) First(name string) (Record, bool) {
	for _, r := range cs.Records {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Append adds a record to the end of the stream.
func (cs *ControlStream) Append(r Record) {
	cs.Records = append(cs.Records, r)
}

// InsertAfter places rec after the last record named after. Falls back to
// appending when no such record exists.
func (cs *ControlStream) InsertAfter(after string, rec Record) {
	idx := -1
	for i, r := range cs.Records {
		if r.Name() == after {
			idx = i
		}
	}
	if idx < 0 {
		cs.Append(rec)
		return
	}
	cs.Records = append(cs.Records[:idx+1], append([]Record{rec}, cs.Records[idx+1:]...)...)
}

// Remove drops all records with the given canonical name.
func (cs *ControlStream) Remove(name string) {
	var kept []Record
	for _, r := range cs.Records {
		if r.Name() != name {
			kept = append(kept, r)
		}
	}
	cs.Records = kept
}

// Replace substitutes the first record with old's canonical name.
func (cs *ControlStream) Replace(name string, rec Record) error {
	for i, r := range cs.Records {
		if r.Name() == name {
			cs.Records[i] = rec
			return nil
		}
	}
	return fmt.Errorf("no $%s record to replace", name)
}
