package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"AfricaScraper/internal/scraper"
	"AfricaScraper/internal/scraper/africa"
	"AfricaScraper/utils"

	"golang.org/x/sync/errgroup"
)

// BulkOutcome is the result of one dataset of a bulk download.
type BulkOutcome struct {
	Flow   string
	Result *Result
	Err    error
}

// UnicefSettings is the sources key whose datasets list is the default bulk selection.
const UnicefSettings = "unicef"

// RunUnicefBulk downloads UNICEF dataflows concurrently, at most workers at a time.
// Flows are upper-cased and deduplicated so each dataset has a single writer. No flows
// means sources.unicef.datasets, or every known flow when that is empty too;
// workers <= 0 uses the configured worker count.
// A failing dataset never stops its siblings; all failures are joined in the error.
func (a *App) RunUnicefBulk(ctx context.Context, flows []string, format string, workers int) ([]BulkOutcome, error) {
	flows = a.BulkFlows(flows)
	if workers <= 0 {
		workers = utils.GetOptimalWorkerCount(a.Config.Scraper.Workers)
	}
	for _, flow := range flows {
		if _, err := a.Sources.Get(africa.UnicefSourceName(flow)); errors.Is(err, scraper.ErrUnknownSource) {
			if err := a.Sources.Register(africa.UnicefDataset(flow)); err != nil {
				return nil, err
			}
		}
	}

	a.log.Info().Int("datasets", len(flows)).Int("workers", workers).Msg("starting unicef bulk download")
	outcomes := make([]BulkOutcome, len(flows))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, flow := range flows {
		g.Go(func() error {
			res, err := a.RunSource(ctx, africa.UnicefSourceName(flow), RunOptions{
				Format: format,
				Output: "unicef_" + flow,
			})
			outcomes[i] = BulkOutcome{Flow: flow, Result: res, Err: err}
			if err != nil {
				a.log.Error().Err(err).Str("flow", flow).Msg("dataset failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Flow, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

// BulkFlows resolves the flows a bulk download will fetch.
func (a *App) BulkFlows(flows []string) []string {
	if len(flows) == 0 {
		flows = a.Config.Source(UnicefSettings).Datasets
	}
	if len(flows) == 0 {
		flows = africa.UnicefFlows
	}
	norm := make([]string, 0, len(flows))
	for _, f := range flows {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			norm = append(norm, f)
		}
	}
	return utils.UniqueStrings(norm)
}
