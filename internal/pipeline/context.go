package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/govfin/internal/directory"
	"github.com/ginjaninja78/govfin/internal/profile"
	"github.com/ginjaninja78/govfin/internal/taxonomy"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/ginjaninja78/govfin/internal/xlsxparser"
	"github.com/ginjaninja78/govfin/pkg/utils"
)

// PipelineContext holds the inputs shared by every year. It is built once
// before any stage starts and is read-only afterwards, so year tasks share
// it without locking.
type PipelineContext struct {
	Registry   *profile.Registry
	Taxonomies taxonomy.Set

	// Mapping is required for local years only.
	Mapping *taxonomy.Mapping

	// Population is required for state years only.
	Population xlsxparser.StatePopulation

	Protected *directory.ProtectedNames
	TitleCase bool
}

// Sources names the files a PipelineContext is built from. Paths are
// resolved against the input directory.
type Sources struct {
	ProfilesFile    string
	TaxonomyFile    string
	MethodologyFile string
	PopulationFile  string
	CityNamesFile   string
	TitleCase       bool
}

// BuildContext loads the shared inputs. The methodology is only read when
// local years are requested and the population table only for state years.
// A missing city names file leaves the allow-list empty.
func BuildContext(files *utils.FileManager, src Sources, needLocal, needState bool, logger *slog.Logger) (*PipelineContext, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pctx := &PipelineContext{
		Registry:   profile.Default(),
		Taxonomies: taxonomy.Default(),
		TitleCase:  src.TitleCase,
	}

	if src.ProfilesFile != "" {
		reg, err := pctx.Registry.LoadFile(files.InputPath(src.ProfilesFile))
		if err != nil {
			return nil, err
		}
		pctx.Registry = reg
	}

	if src.TaxonomyFile != "" {
		set, err := taxonomy.LoadFile(files.InputPath(src.TaxonomyFile))
		if err != nil {
			return nil, err
		}
		pctx.Taxonomies = set
	}

	if needLocal {
		mapping, err := taxonomy.LoadMethodology(files.InputPath(src.MethodologyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load methodology: %w", err)
		}
		pctx.Mapping = mapping

		for _, rt := range types.ReportTypes {
			for code, lines := range mapping.Overlaps(pctx.Taxonomies.For(rt)) {
				logger.Warn("item code feeds several selected lines",
					"report_type", rt, "item_code", code, "lines", lines)
			}
		}

		pctx.Protected = directory.NewProtectedNames(nil)
		if src.CityNamesFile != "" {
			path := files.InputPath(src.CityNamesFile)
			if utils.FileExists(path) {
				places, err := xlsxparser.ReadCityNames(path)
				if err != nil {
					return nil, fmt.Errorf("failed to load city names: %w", err)
				}
				pctx.Protected = directory.NewProtectedNames(places)
			} else {
				logger.Warn("city names file not found, suffix protection disabled", "path", path)
			}
		}
	}

	if needState {
		pop, err := xlsxparser.ReadStatePopulation(files.InputPath(src.PopulationFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load state population: %w", err)
		}
		pctx.Population = pop
	}

	return pctx, nil
}
