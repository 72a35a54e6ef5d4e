package registry

import (
	"bytes"
	"context"
	"embed"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

//go:embed data/*.csv
var embedded embed.FS

// Snapshot is the parsed, read-only content of one registry file.
type Snapshot struct {
	Kind    Kind
	Records []Record
}

// column declares one header a schema needs. Aliases let a snapshot use an
// older or alternative header name.
type column struct {
	name     string
	aliases  []string
	required bool
}

var schemas = map[Kind][]column{
	KindUK: {
		{name: "company_name", aliases: []string{"organisation_name", "company"}, required: true},
		{name: "statement_url", aliases: []string{"url"}},
		{name: "year", aliases: []string{"statement_year"}},
		{name: "board_approval", required: true},
		{name: "director_signature", required: true},
		{name: "homepage_link", aliases: []string{"link_on_homepage"}},
		{name: "organisational_structure", aliases: []string{"org_structure"}},
		{name: "policies"},
		{name: "due_diligence"},
		{name: "risk_assessment"},
		{name: "kpis", aliases: []string{"key_performance_indicators"}},
		{name: "training"},
	},
	KindAU: {
		{name: "entity_name", aliases: []string{"reporting_entity", "company_name"}, required: true},
		{name: "abn"},
		{name: "reporting_period"},
		{name: "principal_governing_body_approval", aliases: []string{"principal_body_approval"}, required: true},
		{name: "responsible_member_signature", aliases: []string{"signed_by_responsible_member"}, required: true},
		{name: "mandatory_criteria_met", aliases: []string{"criteria_met"}, required: true},
	},
	KindBHR: {
		{name: "company", aliases: []string{"company_name"}, required: true},
		{name: "sector"},
		{name: "hq_country", aliases: []string{"headquarters"}},
		{name: "human_rights_policy", required: true},
		{name: "response_rate", required: true},
		{name: "benchmark_score"},
		{name: "allegations", aliases: []string{"allegation_count"}},
	},
}

// row gives typed access to a CSV record through the resolved header index.
type row struct {
	kind   Kind
	line   int
	fields []string
	index  map[string]int
}

func (r row) str(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) flag(name string) bool {
	switch strings.ToLower(r.str(name)) {
	case "yes", "y", "true", "1", "x":
		return true
	}
	return false
}

func (r row) number(name string) (float64, error) {
	s := strings.TrimSuffix(r.str(name), "%")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeRegistrySchemaError,
			"registry %s line %d: column %s is not numeric", r.kind, r.line, name).WithCause(err)
	}
	return v, nil
}

func (r row) integer(name string) (int, error) {
	v, err := r.number(name)
	return int(v), err
}

// Parse reads one registry CSV. Header names are matched case-insensitively
// and may use documented aliases; unknown columns are ignored. Rows without a
// company name are skipped.
func Parse(kind Kind, rd io.Reader) (*Snapshot, error) {
	schema, ok := schemas[kind]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRegistryKindUnknown, "registry: unknown kind %q", kind)
	}

	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRegistrySchemaError, "registry: cannot read header").WithDetail(string(kind))
	}
	index, err := resolveHeader(kind, schema, header)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Kind: kind}
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeRegistrySchemaError, "registry: malformed csv").
				WithDetail(string(kind) + " line " + strconv.Itoa(line))
		}
		r := row{kind: kind, line: line, fields: fields, index: index}
		rec, err := decode(r)
		if err != nil {
			return nil, err
		}
		if rec == nil || strings.TrimSpace(rec.Company()) == "" {
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func resolveHeader(kind Kind, schema []column, header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		h = strings.ReplaceAll(h, " ", "_")
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}

	index := make(map[string]int, len(schema))
	var missing []string
	for _, col := range schema {
		i, ok := pos[col.name]
		for _, alias := range col.aliases {
			if ok {
				break
			}
			i, ok = pos[alias]
		}
		if ok {
			index[col.name] = i
			continue
		}
		if col.required {
			missing = append(missing, col.name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.ErrCodeRegistrySchemaError,
			"registry %s: missing required columns %s", kind, strings.Join(missing, ", "))
	}
	return index, nil
}

func decode(r row) (Record, error) {
	switch r.kind {
	case KindUK:
		year, err := r.integer("year")
		if err != nil {
			return nil, err
		}
		return UKStatement{
			CompanyName:             r.str("company_name"),
			StatementURL:            r.str("statement_url"),
			Year:                    year,
			BoardApproval:           r.flag("board_approval"),
			DirectorSignature:       r.flag("director_signature"),
			HomepageLink:            r.flag("homepage_link"),
			OrganisationalStructure: r.flag("organisational_structure"),
			Policies:                r.flag("policies"),
			DueDiligence:            r.flag("due_diligence"),
			RiskAssessment:          r.flag("risk_assessment"),
			KPIs:                    r.flag("kpis"),
			Training:                r.flag("training"),
		}, nil

	case KindAU:
		met, err := r.integer("mandatory_criteria_met")
		if err != nil {
			return nil, err
		}
		return AUStatement{
			EntityName:                 r.str("entity_name"),
			ABN:                        r.str("abn"),
			ReportingPeriod:            r.str("reporting_period"),
			PrincipalBodyApproval:      r.flag("principal_governing_body_approval"),
			ResponsibleMemberSignature: r.flag("responsible_member_signature"),
			MandatoryCriteriaMet:       met,
		}, nil

	case KindBHR:
		rate, err := r.number("response_rate")
		if err != nil {
			return nil, err
		}
		bench, err := r.number("benchmark_score")
		if err != nil {
			return nil, err
		}
		allegations, err := r.integer("allegations")
		if err != nil {
			return nil, err
		}
		return BHRProfile{
			CompanyName:       r.str("company"),
			Sector:            r.str("sector"),
			HQCountry:         r.str("hq_country"),
			HumanRightsPolicy: r.flag("human_rights_policy"),
			ResponseRate:      rate,
			BenchmarkScore:    bench,
			Allegations:       allegations,
		}, nil
	}
	return nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Sources
// ─────────────────────────────────────────────────────────────────────────────

// Fetcher returns the raw bytes of a named snapshot object.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, name string) ([]byte, error) { return f(ctx, name) }

// EmbeddedFetcher serves the snapshots compiled into the binary.
var EmbeddedFetcher Fetcher = FetcherFunc(func(_ context.Context, name string) ([]byte, error) {
	return embedded.ReadFile("data/" + name)
})

// DirFetcher reads snapshots from a directory on disk.
func DirFetcher(dir string) Fetcher {
	return FetcherFunc(func(_ context.Context, name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	})
}

// LoadAll fetches and parses the snapshot for every kind concurrently. Any
// failure fails the whole load.
func LoadAll(ctx context.Context, f Fetcher, kinds []Kind) ([]*Snapshot, error) {
	out := make([]*Snapshot, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			data, err := f.Fetch(gctx, kind.FileName())
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeRegistryLoadFailed, "registry: snapshot unavailable").WithDetail(kind.FileName())
			}
			snap, err := Parse(kind, bytes.NewReader(data))
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
