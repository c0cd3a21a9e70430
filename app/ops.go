package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"switchboard/catalog"
	"switchboard/core/address"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/providers"
	"switchboard/providers/bedrock"
	"switchboard/store"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
)

// Resolution is what the resolver makes of one model address.
type Resolution struct {
	Descriptor address.Descriptor
	Model      provider.ResolvedModel
	Region     string
	Known      bool // the base model is in the catalog
}

// Resolve runs an address through the resolver without contacting the backend.
func (a *Application) Resolve(raw string) (Resolution, error) {
	opts := model.Options{Raw: raw, PlainIDs: true}
	if a.Backend == providers.Bedrock {
		opts = model.Options{
			Raw:             raw,
			Region:          a.Config.Bedrock.Region,
			CrossRegion:     a.Config.Bedrock.CrossRegion,
			GlobalInference: a.Config.Bedrock.GlobalInference,
		}
	}
	r, err := model.New(opts, a.Catalog, a.Log)
	if err != nil {
		return Resolution{}, err
	}
	d := r.Descriptor()
	_, known := a.Catalog.Lookup(d.BaseModelID)
	return Resolution{Descriptor: d, Model: r.Model(), Region: r.Region(), Known: known}, nil
}

// PrintResolution writes a resolution as aligned key/value lines.
func PrintResolution(out io.Writer, res Resolution) {
	st := newStyles(out)
	d := res.Descriptor
	rows := [][2]string{
		{"call address", res.Model.CallAddress},
		{"kind", d.Kind.String()},
		{"base model", d.BaseModelID},
		{"region", res.Region},
		{"cross-region", strconv.FormatBool(d.CrossRegion)},
	}
	if d.Prefix != "" {
		rows = append(rows, [2]string{"prefix", d.Prefix})
	}
	if d.IsComposite {
		rows = append(rows, [2]string{"account", d.Account}, [2]string{"resource", d.ResourceType + "/" + d.ResourceID})
	}
	snapshot := res.Model.Info.ID
	if !res.Known {
		snapshot += " (default)"
	}
	rows = append(rows, [2]string{"snapshot", snapshot})

	for _, row := range rows {
		fmt.Fprintf(out, "%s %s\n", st.header.Render(fmt.Sprintf("%-13s", row[0])), row[1])
	}
}

// Models lists models from the backend, or from the catalog when offline is set.
func (a *Application) Models(ctx context.Context, offline bool) ([]provider.ModelInfo, error) {
	if offline {
		return a.Catalog.Models(), nil
	}
	lister, ok := a.Provider.(provider.ModelLister)
	if !ok {
		return nil, fmt.Errorf("%s does not support model listing", a.Backend)
	}
	return lister.ListModels(ctx)
}

// PrintModels renders models as a table with prices per million tokens.
func PrintModels(out io.Writer, models []provider.ModelInfo) {
	st := newStyles(out)
	rows := lo.Map(models, func(m provider.ModelInfo, _ int) []string {
		return []string{
			m.ID,
			m.Name,
			formatWindow(m.ContextWindow),
			formatPrice(m.InputCostPer1M),
			formatPrice(m.OutputCostPer1M),
			formatOptionalPrice(m.CacheWriteCostPer1M),
			formatOptionalPrice(m.CacheReadCostPer1M),
		}
	})
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "NAME", "CONTEXT", "IN", "OUT", "CACHE W", "CACHE R").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.header
			}
			return lipgloss.NewStyle()
		})
	fmt.Fprintln(out, t.Render())
}

func formatWindow(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n/1000) + "K"
}

func formatPrice(p float64) string {
	return "$" + strconv.FormatFloat(p, 'f', -1, 64)
}

func formatOptionalPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return formatPrice(*p)
}

// RefreshPricing fetches current Bedrock prices, bypassing the disk cache,
// and applies them to the catalog.
func (a *Application) RefreshPricing(ctx context.Context, src pricingSource) ([]catalog.Override, error) {
	if a.Backend != providers.Bedrock {
		return nil, fmt.Errorf("dynamic pricing is only available for bedrock, not %s", a.Backend)
	}
	if src == nil {
		engine, err := bedrock.NewPricingEngineFromConfig(ctx, a.Config.Bedrock.Profile, a.Log)
		if err != nil {
			return nil, err
		}
		src = engine
	}
	overrides, err := fetchPricing(ctx, src, a.Catalog.Models(), pricingOptions(a.Config, true), defaultPricingBackoff())
	if err != nil {
		return nil, err
	}
	a.Catalog = a.Catalog.WithOverrides(overrides)
	return overrides, nil
}

// PrunePlans removes cache plans not saved within maxAge.
func (a *Application) PrunePlans(ctx context.Context, maxAge time.Duration, dryRun bool) (store.PruneResult, error) {
	if maxAge <= 0 {
		return store.PruneResult{}, fmt.Errorf("max age must be positive")
	}
	result, err := a.Store.Prune(ctx, time.Now().Add(-maxAge), dryRun)
	if err != nil {
		return result, err
	}
	for _, e := range result.Errors {
		a.Log.Warn().Str("error", e).Msg("pruning plans")
	}
	a.Log.Debug().Int("deleted", result.Deleted).Bool("dry_run", dryRun).Msg("plans pruned")
	return result, nil
}
