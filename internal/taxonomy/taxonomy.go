// =============================================================================
// govfin - Category Taxonomy
// =============================================================================
//
// A category is a published grouping ("Public Safety", "Property Tax") that
// owns a fixed set of summary-table line numbers. Each report type has its
// own taxonomy. Lines outside every category never reach a report.
//
// Line numbers must be disjoint across the categories of one report type:
// an overlap would count the same amount twice, so New refuses it.
//
// =============================================================================

package taxonomy

import (
	"fmt"
	"os"
	"sort"

	"github.com/ginjaninja78/govfin/internal/types"
	"gopkg.in/yaml.v3"
)

// Category is a named set of line numbers.
type Category struct {
	Name  string `yaml:"name"`
	Lines []int  `yaml:"lines"`
}

// OverlapError reports a line claimed by two categories.
type OverlapError struct {
	ReportType types.ReportType
	Line       int
	First      string
	Second     string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s taxonomy: line %d is in both %q and %q", e.ReportType, e.Line, e.First, e.Second)
}

// Taxonomy is the immutable category table of one report type.
type Taxonomy struct {
	reportType types.ReportType
	categories []Category
	byLine     map[int]string
}

// New validates and builds a taxonomy.
func New(reportType types.ReportType, categories []Category) (*Taxonomy, error) {
	t := &Taxonomy{
		reportType: reportType,
		categories: make([]Category, 0, len(categories)),
		byLine:     make(map[int]string),
	}

	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("%s taxonomy: category without a name", reportType)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%s taxonomy: duplicate category %q", reportType, c.Name)
		}
		seen[c.Name] = true

		for _, line := range c.Lines {
			if owner, ok := t.byLine[line]; ok {
				return nil, &OverlapError{ReportType: reportType, Line: line, First: owner, Second: c.Name}
			}
			t.byLine[line] = c.Name
		}

		lines := append([]int(nil), c.Lines...)
		t.categories = append(t.categories, Category{Name: c.Name, Lines: lines})
	}

	return t, nil
}

// ReportType returns the report type the taxonomy belongs to.
func (t *Taxonomy) ReportType() types.ReportType { return t.reportType }

// CategoryFor returns the category owning a line.
func (t *Taxonomy) CategoryFor(line int) (string, bool) {
	name, ok := t.byLine[line]
	return name, ok
}

// Lines returns every selected line in ascending order.
func (t *Taxonomy) Lines() []int {
	lines := make([]int, 0, len(t.byLine))
	for line := range t.byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Categories returns a copy of the categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Lines: append([]int(nil), c.Lines...)}
	}
	return out
}

// CategoryNames returns the category names in declaration order.
func (t *Taxonomy) CategoryNames() []string {
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return names
}

// =============================================================================
// TAXONOMY SET
// =============================================================================

// Set holds the taxonomies of both report types.
type Set struct {
	Expenditure *Taxonomy
	Revenue     *Taxonomy
}

// For returns the taxonomy of a report type.
func (s Set) For(reportType types.ReportType) *Taxonomy {
	if reportType == types.Revenue {
		return s.Revenue
	}
	return s.Expenditure
}

// Line numbers of the State & Local Government Finances summary table.
var (
	defaultExpenditure = []Category{
		{"Education", []int{71, 73, 75, 76}},
		{"Administration", []int{106, 108, 109, 110}},
		{"Health & Welfare", []int{101, 84, 83, 81, 78, 80, 79, 85}},
		{"Parks & Recreation", []int{99, 97}},
		{"Public Safety", []int{107, 94, 93, 92, 96}},
		{"Transportation", []int{88, 86, 89, 90}},
		{"Utilities", []int{102, 104, 116, 117, 118, 115}},
		{"Other", []int{119, 111, 112}},
	}

	defaultRevenue = []Category{
		{"Inter-Governmental", []int{4}},
		{"Property Tax", []int{9}},
		{"Sales Tax", []int{11, 13, 14, 15, 16, 17}},
		{"Income Tax", []int{18}},
		{"Other Tax", []int{19, 20, 21}},
		{"Current Charges", []int{24, 27, 28, 29, 30, 31, 32, 33, 34, 37, 47}},
		{"Utilities", []int{35, 36, 44, 45, 46}},
		{"Other", []int{39, 40, 41, 42, 48}},
	}
)

// Default returns the built-in taxonomies.
func Default() Set {
	exp, err := New(types.Expenditure, defaultExpenditure)
	if err != nil {
		panic(err)
	}
	rev, err := New(types.Revenue, defaultRevenue)
	if err != nil {
		panic(err)
	}
	return Set{Expenditure: exp, Revenue: rev}
}

type taxonomyFile struct {
	Expenditure []Category `yaml:"expenditure"`
	Revenue     []Category `yaml:"revenue"`
}

// LoadFile reads a taxonomy.yaml. A report type missing from the file keeps
// the built-in table.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Set{}, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}

	set := Default()
	if len(file.Expenditure) > 0 {
		if set.Expenditure, err = New(types.Expenditure, file.Expenditure); err != nil {
			return Set{}, err
		}
	}
	if len(file.Revenue) > 0 {
		if set.Revenue, err = New(types.Revenue, file.Revenue); err != nil {
			return Set{}, err
		}
	}
	return set, nil
}
