package perf

import (
	"sort"

	"trade-intel-lab/internal/domain"
)

// KeyFunc extracts the grouping key from an outcome. ok=false means the
// outcome is missing the field this grouping requires and is excluded from
// this grouping only, not dropped globally.
type KeyFunc func(*domain.TradeOutcome) (key string, ok bool)

// KeyByEngine groups by the engine that produced the prediction.
func KeyByEngine(o *domain.TradeOutcome) (string, bool) {
	return o.EngineID, o.EngineID != ""
}

// KeyBySymbol groups by traded symbol.
func KeyBySymbol(o *domain.TradeOutcome) (string, bool) {
	return o.Symbol, o.Symbol != ""
}

// KeyByDirection groups by long/short direction.
func KeyByDirection(o *domain.TradeOutcome) (string, bool) {
	return string(o.Direction), o.Direction != ""
}

// KeyByCatalyst groups by catalyst type. Ideas without a catalyst are
// excluded from this grouping.
func KeyByCatalyst(o *domain.TradeOutcome) (string, bool) {
	return o.CatalystType, o.CatalystType != ""
}

// KeyByAssetType groups by asset type.
func KeyByAssetType(o *domain.TradeOutcome) (string, bool) {
	return o.AssetType, o.AssetType != ""
}

// keyFuncFor maps a dimension to its extractor.
func keyFuncFor(dim domain.GroupDimension) KeyFunc {
	switch dim {
	case domain.GroupByEngine:
		return KeyByEngine
	case domain.GroupBySymbol:
		return KeyBySymbol
	case domain.GroupByDirection:
		return KeyByDirection
	case domain.GroupByCatalyst:
		return KeyByCatalyst
	case domain.GroupByAssetType:
		return KeyByAssetType
	default:
		return nil
	}
}

// Result is the output of one grouped reduction.
type Result struct {
	Dimension domain.GroupDimension
	Groups    []domain.EngineMetrics
	// Skipped counts outcomes excluded because they lacked the grouping
	// field (data-quality signal, not an error).
	Skipped int
}

// Aggregate reduces a ledger snapshot into one metrics row per group.
// The reduction is pure: the same snapshot always yields byte-identical
// output, with groups sorted by key.
func Aggregate(dim domain.GroupDimension, outcomes []*domain.TradeOutcome) Result {
	return AggregateBy(dim, outcomes, keyFuncFor(dim))
}

// AggregateBy is Aggregate with an explicit key function.
func AggregateBy(dim domain.GroupDimension, outcomes []*domain.TradeOutcome, keyFn KeyFunc) Result {
	res := Result{Dimension: dim}
	if keyFn == nil {
		return res
	}

	groups := make(map[string][]*domain.TradeOutcome)
	for _, o := range outcomes {
		key, ok := keyFn(o)
		if !ok {
			res.Skipped++
			continue
		}
		groups[key] = append(groups[key], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res.Groups = make([]domain.EngineMetrics, 0, len(keys))
	for _, k := range keys {
		res.Groups = append(res.Groups, computeGroupMetrics(dim, k, groups[k]))
	}

	return res
}
