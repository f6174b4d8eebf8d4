// Package optimize shrinks oversized session records by dropping or
// truncating low-value fields. The transform is a pipeline of named steps,
// each operating on a deep copy, so the caller decides whether the shrunken
// form is worth keeping.
package optimize

import (
	"reflect"
	"sort"
	"strings"

	"github.com/aatumaykin/sessmaint/internal/store"
)

// Config caps the fields the optimizer truncates.
type Config struct {
	MaxProductQuantities int // entries allowed before truncation
	QuantitiesRetain     int // entries kept when truncating
	MaxCartItems         int // cart items allowed before truncation
	CartItemsRetain      int // cart items kept when truncating
}

// DefaultConfig returns the stock caps.
func DefaultConfig() Config {
	return Config{
		MaxProductQuantities: 50,
		QuantitiesRetain:     20,
		MaxCartItems:         20,
		CartItemsRetain:      20,
	}
}

// Result reports one record's optimization outcome. Record is a mutated deep
// copy; the input record is never touched.
type Result struct {
	Record        *store.Record
	OriginalSize  int
	OptimizedSize int
	RatioPercent  float64
	Dropped       []string
}

// Step is a single named transform. Apply mutates the record in place and
// returns the names of the fields it dropped or truncated, empty when the
// record was already in target shape.
type Step struct {
	Name  string
	Apply func(cfg Config, rec *store.Record) []string
}

// Steps returns the full pipeline in application order.
func Steps() []Step {
	return []Step{
		{Name: "dropProducts", Apply: dropProducts},
		{Name: "trimSelectedProduct", Apply: trimSelectedProduct},
		{Name: "trimSelectedCategory", Apply: trimSelectedCategory},
		{Name: "truncateQuantities", Apply: truncateQuantities},
		{Name: "dropTransientFlags", Apply: dropTransientFlags},
		{Name: "trimCart", Apply: trimCart},
	}
}

// Optimizer applies the step pipeline to records.
type Optimizer struct {
	cfg   Config
	steps []Step
}

// New creates an optimizer running the default pipeline.
func New(cfg Config) *Optimizer {
	return &Optimizer{cfg: cfg, steps: Steps()}
}

// Optimize runs the pipeline over a copy of rec and measures the canonical
// encoded size before and after.
func (o *Optimizer) Optimize(rec *store.Record) (Result, error) {
	originalSize, err := store.CanonicalSize(rec)
	if err != nil {
		return Result{}, err
	}

	optimized, err := rec.Clone()
	if err != nil {
		return Result{}, err
	}

	var dropped []string
	for _, step := range o.steps {
		dropped = append(dropped, step.Apply(o.cfg, optimized)...)
	}

	optimizedSize, err := store.CanonicalSize(optimized)
	if err != nil {
		return Result{}, err
	}

	ratio := 0.0
	if originalSize > 0 {
		ratio = float64(originalSize-optimizedSize) / float64(originalSize) * 100
	}

	return Result{
		Record:        optimized,
		OriginalSize:  originalSize,
		OptimizedSize: optimizedSize,
		RatioPercent:  ratio,
		Dropped:       dropped,
	}, nil
}

// dropProducts removes the embedded catalog cache outright.
func dropProducts(_ Config, rec *store.Record) []string {
	if _, ok := rec.Extra["products"]; !ok {
		return nil
	}
	rec.DeleteExtra("products")
	return []string{"products"}
}

func trimSelectedProduct(_ Config, rec *store.Record) []string {
	if rec.SelectedProduct == nil {
		return nil
	}
	trimmed := map[string]any{}
	if id, ok := rec.SelectedProduct["id"]; ok {
		trimmed["id"] = id
	}
	if name, ok := resolveName(rec.SelectedProduct, recordLanguage(rec)); ok {
		trimmed["name"] = name
	}
	if price, ok := rec.SelectedProduct["price"]; ok {
		trimmed["price"] = price
	}
	if reflect.DeepEqual(trimmed, rec.SelectedProduct) {
		return nil
	}
	rec.SelectedProduct = trimmed
	return []string{"selectedProduct (simplified)"}
}

func trimSelectedCategory(_ Config, rec *store.Record) []string {
	if rec.SelectedCategory == nil {
		return nil
	}
	trimmed := map[string]any{}
	if id, ok := rec.SelectedCategory["id"]; ok {
		trimmed["id"] = id
	}
	if name, ok := resolveName(rec.SelectedCategory, recordLanguage(rec)); ok {
		trimmed["name"] = name
	}
	if icon, ok := rec.SelectedCategory["icon"]; ok {
		trimmed["icon"] = icon
	}
	if reflect.DeepEqual(trimmed, rec.SelectedCategory) {
		return nil
	}
	rec.SelectedCategory = trimmed
	return []string{"selectedCategory (simplified)"}
}

func truncateQuantities(cfg Config, rec *store.Record) []string {
	q := rec.ProductQuantities
	if q == nil || q.Len() <= cfg.MaxProductQuantities {
		return nil
	}
	rec.ProductQuantities = q.Tail(cfg.QuantitiesRetain)
	return []string{"productQuantities (truncated)"}
}

// transientFlags are the in-progress UI markers a record accumulates; they
// carry no value once the flow they belonged to is over.
var transientFlags = map[string]bool{
	"step":          true,
	"previousScene": true,
	"__scenes":      true,
}

func dropTransientFlags(_ Config, rec *store.Record) []string {
	var dropped []string
	for key := range rec.Extra {
		if transientFlags[key] || strings.HasPrefix(key, "expecting") {
			dropped = append(dropped, key)
		}
	}
	sort.Strings(dropped)
	for _, key := range dropped {
		rec.DeleteExtra(key)
	}
	return dropped
}

func trimCart(cfg Config, rec *store.Record) []string {
	cart := rec.Cart
	if cart == nil || len(cart.Items) <= cfg.MaxCartItems {
		return nil
	}

	retain := cfg.CartItemsRetain
	if retain > len(cart.Items) {
		retain = len(cart.Items)
	}
	items := cart.Items[len(cart.Items)-retain:]
	stripped := make([]store.CartItem, len(items))
	for i, item := range items {
		stripped[i] = store.CartItem{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}
	cart.Items = stripped

	// Items changed, so the derived total must be recomputed.
	total := cartTotal(stripped)
	cart.Total = &total
	return []string{"cart.items (truncated)"}
}

func cartTotal(items []store.CartItem) float64 {
	var total float64
	for _, item := range items {
		if item.Price == nil || item.Quantity == nil {
			continue
		}
		total += *item.Price * float64(*item.Quantity)
	}
	return total
}

// resolveName picks a display name from a catalog snapshot: a custom
// override wins, then the localized name for the session's language, then
// the usual language fallbacks.
func resolveName(snapshot map[string]any, lang string) (any, bool) {
	if custom, ok := snapshot["customName"].(string); ok && custom != "" {
		return custom, true
	}
	name, ok := snapshot["name"]
	if !ok {
		return nil, false
	}
	localized, ok := name.(map[string]any)
	if !ok {
		return name, true
	}
	for _, candidate := range []string{lang, "en", "ru", "uz"} {
		if v, ok := localized[candidate]; ok {
			return v, true
		}
	}
	// Last resort: the lexically smallest code, so repeated passes stay
	// byte-identical.
	var keys []string
	for k := range localized {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	return localized[keys[0]], true
}

func recordLanguage(rec *store.Record) string {
	if rec.Language != nil && *rec.Language != "" {
		return *rec.Language
	}
	return "en"
}
