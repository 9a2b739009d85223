package africa

import (
	"context"
	"net/url"
	"strconv"

	"AfricaScraper/internal/models"
	"AfricaScraper/internal/pipeline"
	"AfricaScraper/internal/scraper"
	"AfricaScraper/utils"
)

const unPopulationURL = "https://population.un.org/dataportalapi/api/v1/indicators"

type unPopulation struct{}

// UNPopulation pages through the UN Population Division indicator list by
// following the nextPage link of every response.
func UNPopulation() scraper.Source { return unPopulation{} }

func (unPopulation) Info() scraper.Info {
	return scraper.Info{
		Name:     "unpopulation",
		Title:    "UN Population Division data portal indicators",
		Kind:     scraper.KindAPI,
		MaxPages: 100,
		NewSchema: func() *models.Schema {
			return models.NewOpenSchema("unpopulation",
				models.Field{Name: "id", Type: models.Number, Required: true},
				models.Field{Name: "name", Type: models.Text, Required: true},
				models.Field{Name: "shortName", Type: models.Text},
				models.Field{Name: "description", Type: models.Text},
			)
		},
		DedupeKey: "id",
	}
}

type indicatorPage struct {
	Data     []map[string]any `json:"data"`
	NextPage *string          `json:"nextPage"`
}

func (unPopulation) Open(_ context.Context, env scraper.Env) (*scraper.Pipeline, error) {
	base := unPopulationURL
	if env.Settings.BaseURL != "" {
		base = env.Settings.BaseURL
	}
	size := env.Settings.PageSize
	if size <= 0 {
		size = 100
	}
	origin, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	q := origin.Query()
	q.Set("pageNumber", "1")
	q.Set("pageSize", strconv.Itoa(size))
	origin.RawQuery = q.Encode()

	client := env.HTTP.SetBearer(env.Settings.Token)
	nav := &pipeline.TokenNavigator{
		Origin: origin.String(),
		Fetch: func(ctx context.Context, target string) (*pipeline.Page, error) {
			var body indicatorPage
			if err := client.JSON(ctx, target, nil, &body); err != nil {
				return &pipeline.Page{URL: target}, err
			}
			page := &pipeline.Page{URL: target, Rows: body.Data}
			if page.Rows == nil {
				page.Rows = []map[string]any{}
			}
			// An empty page ends the listing even if the API still offers a next link.
			if body.NextPage != nil && *body.NextPage != "" && len(body.Data) > 0 {
				page.Next = utils.ResolveURL(target, *body.NextPage)
			}
			return page, nil
		},
	}
	return &scraper.Pipeline{Navigator: nav, Extractor: pipeline.TabularExtractor{}}, nil
}
