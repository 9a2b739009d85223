package africa

import (
	"context"
	"fmt"
	"strings"

	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
)

const unicefSDMX = "https://sdmx.data.unicef.org/ws/public/sdmxapi/rest"

// UnicefFlows are the UNICEF SDMX dataflows downloaded in bulk.
var UnicefFlows = []string{
	"PT", "CHILD_RELATED_SDG", "CME", "CME_CAUSE_OF_DEATH", "CME_COUNTRY_PROFILES_DATA",
	"COVID", "COVID_CASES", "DM", "DM_PROJECTIONS", "ECD", "ECONOMIC", "EDUCATION",
	"FUNCTIONAL_DIFF", "GENDER", "HIV_AIDS", "IMMUNISATION", "MG", "MNCH", "PT_CM",
	"PT_CONFLICT", "PT_FGM", "SDG_PROG_ASSESSMENT", "SOC_PROTECTION",
	"WASH_HEALTHCARE_FACILITY", "WASH_HOUSEHOLD_MH", "WASH_HOUSEHOLD_SUBNAT",
	"WASH_HOUSEHOLDS", "WASH_SCHOOLS", "WT",
	"NUTRITION", "GLOBAL_DATAFLOW",
}

// UnicefSourceName is the registry name of the source downloading flow.
func UnicefSourceName(flow string) string {
	return "unicef-" + strings.ToLower(strings.ReplaceAll(flow, "_", "-"))
}

// UnicefDataURL is the CSV export of one dataflow with labels.
func UnicefDataURL(base, flow string) string {
	return fmt.Sprintf("%s/data/UNICEF,%s,1.0/all?format=csv&labels=both", strings.TrimRight(base, "/"), flow)
}

type unicefDataset struct {
	flow string
}

// UnicefDataset downloads one dataflow as a single CSV page. Columns are not known
// ahead of time, so the schema is open.
func UnicefDataset(flow string) scraper.Source { return unicefDataset{flow: flow} }

func (u unicefDataset) Info() scraper.Info {
	name := UnicefSourceName(u.flow)
	return scraper.Info{
		Name:          name,
		Title:         "UNICEF " + u.flow + " dataflow",
		Kind:          scraper.KindAPI,
		CountryFields: []string{"Geographic area", "Country", "Reference area"},
		MaxPages:      1,
		NewSchema:     func() *models.Schema { return models.NewOpenSchema(name) },
	}
}

func (u unicefDataset) Open(_ context.Context, env scraper.Env) (*scraper.Pipeline, error) {
	base := unicefSDMX
	if env.Settings.BaseURL != "" {
		base = env.Settings.BaseURL
	}
	target := UnicefDataURL(base, u.flow)
	nav := pipeline.SinglePage(func(ctx context.Context) (*pipeline.Page, error) {
		cols, rows, err := env.HTTP.CSV(ctx, target, nil)
		if err != nil {
			return &pipeline.Page{URL: target}, err
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		return &pipeline.Page{URL: target, Columns: cols, Rows: rows}, nil
	})
	return &scraper.Pipeline{Navigator: nav, Extractor: pipeline.TabularExtractor{}}, nil
}

type unicefDataflows struct{}

// UnicefDataflows lists the dataflow catalogue of the UNICEF SDMX registry.
func UnicefDataflows() scraper.Source { return unicefDataflows{} }

func (unicefDataflows) Info() scraper.Info {
	return scraper.Info{
		Name:     "unicef-dataflows",
		Title:    "UNICEF SDMX dataflow catalogue",
		Kind:     scraper.KindAPI,
		MaxPages: 1,
		NewSchema: schemaOf("unicef-dataflows",
			text("id", true),
			text("agencyID", false),
			text("version", false),
			text("name", true),
			text("description", false),
		),
		DedupeKey: "id",
	}
}

type dataflowList struct {
	Data struct {
		Dataflows []map[string]any `json:"dataflows"`
	} `json:"data"`
}

func (unicefDataflows) Open(_ context.Context, env scraper.Env) (*scraper.Pipeline, error) {
	base := unicefSDMX
	if env.Settings.BaseURL != "" {
		base = env.Settings.BaseURL
	}
	target := strings.TrimRight(base, "/") + "/dataflow/all/all/latest"
	query := map[string]string{"format": "sdmx-json", "detail": "full", "references": "none"}
	nav := pipeline.SinglePage(func(ctx context.Context) (*pipeline.Page, error) {
		var body dataflowList
		if err := env.HTTP.JSON(ctx, target, query, &body); err != nil {
			return &pipeline.Page{URL: target}, err
		}
		rows := body.Data.Dataflows
		if rows == nil {
			rows = []map[string]any{}
		}
		return &pipeline.Page{URL: target, Rows: rows}, nil
	})
	return &scraper.Pipeline{Navigator: nav, Extractor: pipeline.TabularExtractor{}}, nil
}
