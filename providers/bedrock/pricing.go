package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"switchboard/catalog"
	"switchboard/core/provider"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var serviceCodes = []string{"AmazonBedrockFoundationModels", "AmazonBedrock"}

// IO types a price row can bill.
const (
	ioInput      = "input"
	ioOutput     = "output"
	ioCacheRead  = "cache_read"
	ioCacheWrite = "cache_write"
)

var tierRank = map[string]int{
	"standard": 0,
	"priority": 1,
	"flex":     2,
	"batch":    3,
	"reserved": 4,
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
var inputTokenRe = regexp.MustCompile(`\binput[-_ ]tokens?\b`)
var outputTokenRe = regexp.MustCompile(`\boutput[-_ ]tokens?\b`)
var cacheReadRe = regexp.MustCompile(`cache[-_ ]?read`)
var cacheWriteRe = regexp.MustCompile(`cache[-_ ]?write`)

type pricingItem struct {
	Product struct {
		Attributes map[string]string `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]termBody `json:"OnDemand"`
	} `json:"terms"`
}

type termBody struct {
	EffectiveDate   string                    `json:"effectiveDate"`
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

type priceDimension struct {
	PricePerUnit map[string]string `json:"pricePerUnit"`
	Unit         string            `json:"unit"`
	Description  string            `json:"description"`
}

// row is one on-demand price dimension for a model in a region.
type row struct {
	ModelName     string `json:"model_name"`
	RegionCode    string `json:"region_code"`
	UsageType     string `json:"usage_type"`
	IOType        string `json:"io_type"`
	Tier          string `json:"tier"`
	IsGlobal      bool   `json:"is_global"`
	IsLongContext bool   `json:"is_long_context"`
	USD           string `json:"usd"`
	Unit          string `json:"unit"`
	Description   string `json:"description"`
	EffectiveDate string `json:"effective_date"`
}

// PricingOptions controls a pricing fetch.
type PricingOptions struct {
	Region       string // regionCode whose prices are used
	MaxPages     int    // 0 fetches every page
	CacheDir     string // empty disables the disk cache
	CacheTTL     int    // hours between checks for newer prices
	ForceRefresh bool
}

// pricingAPI is the subset of pricing.Client used here.
type pricingAPI interface {
	GetProducts(ctx context.Context, params *awspricing.GetProductsInput, optFns ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error)
}

// PricingEngine turns AWS Pricing API data into catalog overrides.
type PricingEngine struct {
	client pricingAPI
	log    zerolog.Logger
}

// NewPricingEngine creates a pricing engine with the given AWS Pricing client.
func NewPricingEngine(client pricingAPI, log zerolog.Logger) *PricingEngine {
	return &PricingEngine{client: client, log: log}
}

// NewPricingEngineFromConfig loads AWS credentials for the Pricing API, which
// is only served from us-east-1.
func NewPricingEngineFromConfig(ctx context.Context, profile string, log zerolog.Logger) (*PricingEngine, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion("us-east-1")}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for pricing: %w", err)
	}
	return NewPricingEngine(awspricing.NewFromConfig(cfg), log), nil
}

// Overrides fetches current prices and matches them to models by name.
// Models without a complete standard price in opts.Region are left out.
func (e *PricingEngine) Overrides(ctx context.Context, models []provider.ModelInfo, opts PricingOptions) ([]catalog.Override, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("pricing client is required")
	}
	rows, err := e.fetchRows(ctx, opts)
	if err != nil {
		return nil, err
	}
	overrides := buildOverrides(rows, opts.Region, models)
	e.log.Debug().
		Int("rows", len(rows)).
		Int("overrides", len(overrides)).
		Str("region", opts.Region).
		Msg("bedrock pricing fetched")
	return overrides, nil
}

func (e *PricingEngine) fetchRows(ctx context.Context, opts PricingOptions) ([]row, error) {
	type fetchResult struct {
		rows []row
		err  error
	}

	results := make(chan fetchResult, len(serviceCodes))
	for _, serviceCode := range serviceCodes {
		go func(sc string) {
			rows, err := e.fetchServiceCode(ctx, sc, opts)
			results <- fetchResult{rows: rows, err: err}
		}(serviceCode)
	}

	var all []row
	var firstErr error
	for range serviceCodes {
		result := <-results
		if result.err != nil && firstErr == nil {
			firstErr = result.err
		}
		all = append(all, result.rows...)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return lo.UniqBy(all, func(r row) string {
		return strings.Join([]string{
			r.ModelName, r.RegionCode, r.UsageType, r.IOType, r.Tier,
			strconv.FormatBool(r.IsGlobal), strconv.FormatBool(r.IsLongContext), r.USD,
		}, "\x1f")
	}), nil
}

func (e *PricingEngine) fetchServiceCode(ctx context.Context, serviceCode string, opts PricingOptions) ([]row, error) {
	cacheFile := ""
	if opts.CacheDir != "" {
		cacheFile = filepath.Join(opts.CacheDir, serviceCode+".json")
	}

	if cacheFile != "" && opts.CacheTTL > 0 && !opts.ForceRefresh {
		if cached, err := readCache(cacheFile); err == nil {
			if !shouldCheckForUpdates(cached, opts.CacheTTL, time.Now()) {
				return cached.Rows, nil
			}
			newer, err := e.hasNewerPrices(ctx, serviceCode, cached.Metadata.MaxEffectiveDate)
			if err != nil {
				e.log.Warn().Err(err).Str("service", serviceCode).Msg("checking for newer prices; using cache")
				return cached.Rows, nil
			}
			if !newer {
				if err := touchCache(cacheFile, cached); err != nil {
					e.log.Debug().Err(err).Msg("updating pricing cache timestamp")
				}
				return cached.Rows, nil
			}
		}
	}

	var rows []row
	pages := 0
	var nextToken *string
	for {
		output, err := e.client.GetProducts(ctx, &awspricing.GetProductsInput{
			ServiceCode:   aws.String(serviceCode),
			FormatVersion: aws.String("aws_v1"),
			MaxResults:    aws.Int32(100),
			NextToken:     nextToken,
		})
		if err != nil {
			return nil, classifyErr(err)
		}
		pages++

		for _, raw := range output.PriceList {
			var item pricingItem
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				return nil, fmt.Errorf("parsing AWS pricing response: %w", err)
			}
			rows = append(rows, extractRows(item, serviceCode)...)
		}

		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			break
		}
		if aws.ToString(output.NextToken) == "" {
			break
		}
		nextToken = output.NextToken
	}

	if cacheFile != "" {
		if err := writeCache(cacheFile, serviceCode, rows, time.Now()); err != nil {
			e.log.Warn().Err(err).Str("path", cacheFile).Msg("writing pricing cache")
		}
	}
	return rows, nil
}

// hasNewerPrices reads one page and reports whether any term is newer than the cache.
func (e *PricingEngine) hasNewerPrices(ctx context.Context, serviceCode string, cachedMax time.Time) (bool, error) {
	output, err := e.client.GetProducts(ctx, &awspricing.GetProductsInput{
		ServiceCode:   aws.String(serviceCode),
		FormatVersion: aws.String("aws_v1"),
		MaxResults:    aws.Int32(100),
	})
	if err != nil {
		return false, err
	}
	for _, raw := range output.PriceList {
		var item pricingItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			continue
		}
		for _, term := range item.Terms.OnDemand {
			if d, err := time.Parse(time.RFC3339, term.EffectiveDate); err == nil && d.After(cachedMax) {
				return true, nil
			}
		}
	}
	return false, nil
}

// --- disk cache ---

type cacheMetadata struct {
	FetchedAt        time.Time `json:"fetched_at"`
	ServiceCode      string    `json:"service_code"`
	MaxEffectiveDate time.Time `json:"max_effective_date"`
	LastCheckedAt    time.Time `json:"last_checked_at"`
}

type cachedData struct {
	Metadata cacheMetadata `json:"metadata"`
	Rows     []row         `json:"rows"`
}

func readCache(path string) (*cachedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c cachedData
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func writeCache(path, serviceCode string, rows []row, now time.Time) error {
	return saveCache(path, &cachedData{
		Metadata: cacheMetadata{
			FetchedAt:        now,
			ServiceCode:      serviceCode,
			MaxEffectiveDate: maxEffectiveDate(rows),
			LastCheckedAt:    now,
		},
		Rows: rows,
	})
}

func touchCache(path string, c *cachedData) error {
	c.Metadata.LastCheckedAt = time.Now()
	return saveCache(path, c)
}

func saveCache(path string, c *cachedData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func shouldCheckForUpdates(c *cachedData, ttlHours int, now time.Time) bool {
	if c == nil || ttlHours <= 0 {
		return false
	}
	return now.Sub(c.Metadata.LastCheckedAt) >= time.Duration(ttlHours)*time.Hour
}

func maxEffectiveDate(rows []row) time.Time {
	var latest time.Time
	for _, r := range rows {
		d, err := time.Parse(time.RFC3339, r.EffectiveDate)
		if err == nil && d.After(latest) {
			latest = d
		}
	}
	return latest
}

// --- row extraction ---

func normalizeName(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, " "))
	return strings.TrimSpace(nonAlnumRe.ReplaceAllString(joined, " "))
}

func modelNameFromAttributes(serviceCode string, attributes map[string]string) string {
	if serviceCode == "AmazonBedrockFoundationModels" {
		return attributes["servicename"]
	}
	if model := attributes["model"]; model != "" {
		return model
	}
	return attributes["servicename"]
}

func detectIOType(attributes map[string]string, usageType, description string) string {
	blob := strings.ToLower(strings.Join([]string{attributes["inferenceType"], usageType, description}, " "))
	switch {
	case cacheReadRe.MatchString(blob):
		return ioCacheRead
	case cacheWriteRe.MatchString(blob):
		return ioCacheWrite
	case strings.Contains(blob, "inputtokencount") || inputTokenRe.MatchString(blob):
		return ioInput
	case strings.Contains(blob, "outputtokencount") || outputTokenRe.MatchString(blob):
		return ioOutput
	case strings.Contains(blob, "input") && strings.Contains(blob, "token"):
		return ioInput
	case strings.Contains(blob, "output") && strings.Contains(blob, "token"):
		return ioOutput
	}
	return ""
}

func detectTier(attributes map[string]string, usageType, description string) string {
	blob := strings.ToLower(strings.Join([]string{attributes["inferenceType"], usageType, description}, " "))
	switch {
	case strings.Contains(blob, "reserved"):
		return "reserved"
	case strings.Contains(blob, "batch"):
		return "batch"
	case strings.Contains(blob, "priority"):
		return "priority"
	case strings.Contains(blob, "flex"):
		return "flex"
	default:
		return "standard"
	}
}

func isLongContext(modelName, usageType, description string) bool {
	blob := strings.ToLower(strings.Join([]string{modelName, usageType, description}, " "))
	return strings.Contains(blob, "long context") || strings.Contains(blob, "lctx")
}

func extractRows(item pricingItem, serviceCode string) []row {
	attributes := item.Product.Attributes
	modelName := modelNameFromAttributes(serviceCode, attributes)
	if modelName == "" {
		return nil
	}
	usageType := attributes["usagetype"]

	var rows []row
	for _, term := range item.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			usd := strings.TrimSpace(dim.PricePerUnit["USD"])
			if usd == "" {
				continue
			}
			ioType := detectIOType(attributes, usageType, dim.Description)
			if ioType == "" {
				continue
			}
			rows = append(rows, row{
				ModelName:     modelName,
				RegionCode:    attributes["regionCode"],
				UsageType:     usageType,
				IOType:        ioType,
				Tier:          detectTier(attributes, usageType, dim.Description),
				IsGlobal:      strings.Contains(strings.ToLower(usageType), "global"),
				IsLongContext: isLongContext(modelName, usageType, dim.Description),
				USD:           usd,
				Unit:          dim.Unit,
				Description:   dim.Description,
				EffectiveDate: term.EffectiveDate,
			})
		}
	}
	return rows
}

// --- matching ---

// tokenScaleTo1M returns the factor converting a per-unit price to USD per
// million tokens, or 0 when the unit is not a token count.
func tokenScaleTo1M(unit, description string) float64 {
	blob := strings.ToLower(unit + " " + description)
	if !strings.Contains(blob, "token") {
		return 0
	}
	switch {
	case strings.Contains(blob, "million") || strings.Contains(blob, "1m"):
		return 1
	case strings.Contains(blob, "thousand") || strings.Contains(blob, "1k"):
		return 1000
	case strings.Contains(blob, "per token"):
		return 1_000_000
	default:
		return 0
	}
}

// pricePer1M returns the row's price in USD per million tokens.
func pricePer1M(r row) (float64, bool) {
	usd, err := strconv.ParseFloat(r.USD, 64)
	if err != nil || usd < 0 {
		return 0, false
	}
	scale := tokenScaleTo1M(r.Unit, r.Description)
	if scale == 0 {
		return 0, false
	}
	return usd * scale, true
}

// better reports whether a is preferred over b: standard tier, regional,
// short context, then the cheaper price.
func better(a, b row) bool {
	if ra, rb := tierRank[a.Tier], tierRank[b.Tier]; ra != rb {
		return ra < rb
	}
	if a.IsGlobal != b.IsGlobal {
		return !a.IsGlobal
	}
	if a.IsLongContext != b.IsLongContext {
		return !a.IsLongContext
	}
	pa, _ := pricePer1M(a)
	pb, _ := pricePer1M(b)
	return pa < pb
}

func buildOverrides(rows []row, region string, models []provider.ModelInfo) []catalog.Override {
	byName := make(map[string]string, len(models))
	for _, m := range models {
		if m.Name != "" {
			byName[normalizeName(m.Name)] = m.ID
		}
	}

	type key struct{ id, io string }
	best := map[key]row{}
	for _, r := range rows {
		if r.RegionCode != region {
			continue
		}
		id, ok := byName[normalizeName(r.ModelName)]
		if !ok {
			continue
		}
		if _, ok := pricePer1M(r); !ok {
			continue
		}
		k := key{id, r.IOType}
		if cur, ok := best[k]; !ok || better(r, cur) {
			best[k] = r
		}
	}

	price := func(id, io string) *float64 {
		r, ok := best[key{id, io}]
		if !ok {
			return nil
		}
		p, _ := pricePer1M(r)
		return catalog.Price(p)
	}

	var out []catalog.Override
	for _, id := range lo.Uniq(lo.Values(byName)) {
		o := catalog.Override{
			ID:              id,
			InputPrice:      price(id, ioInput),
			OutputPrice:     price(id, ioOutput),
			CacheReadPrice:  price(id, ioCacheRead),
			CacheWritePrice: price(id, ioCacheWrite),
		}
		// A partial input/output pair would misprice the model.
		if o.InputPrice == nil || o.OutputPrice == nil {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
